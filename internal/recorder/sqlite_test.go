package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeSentinel/internal/model"
)

func TestSQLiteRecorder_RoundTrip(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer r.Close()

	run := &RunRecord{
		Symbol:        "BTC-USD",
		Interval:      "1d",
		Bars:          365,
		Rows:          341,
		States:        3,
		Covariance:    "full",
		LogLikelihood: -1234.5,
		Iterations:    17,
		Converged:     true,
		BuyStates:     "{1}",
		SellStates:    "{2}",
		InitialCash:   10000,
		FinalValue:    12500,
		TotalReturn:   0.25,
		MaxDrawdown:   0.1,
		Outcome:       OutcomeSuccess,
	}
	require.NoError(t, r.RecordRun(run))
	assert.NotEmpty(t, run.ID)

	require.NoError(t, r.RecordStates(run.ID, []model.StateSummary{
		{State: 0, Count: 100, Share: 0.3},
		{State: 1, Count: 241, Share: 0.7},
	}))
	require.NoError(t, r.RecordTrades(run.ID, []model.TradeEvent{
		{Index: 3, Time: time.Now(), Side: model.SideBuy, State: 1, Price: 100, Position: 100},
		{Index: 9, Time: time.Now(), Side: model.SideSell, State: 2, Price: 125, Cash: 12500},
	}))

	runs, err := r.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, "BTC-USD", runs[0].Symbol)
	assert.True(t, runs[0].Converged)
	assert.Equal(t, 12500.0, runs[0].FinalValue)

	n, err := r.CountTrades(run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteRecorder_DistinctRunIDs(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer r.Close()

	a := &RunRecord{Outcome: OutcomeFailed, Error: "stage fit: model fit failed"}
	b := &RunRecord{Outcome: OutcomeSuccess}
	require.NoError(t, r.RecordRun(a))
	require.NoError(t, r.RecordRun(b))
	assert.NotEqual(t, a.ID, b.ID)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordRun(&RunRecord{}))
	assert.NoError(t, r.RecordTrades("x", nil))
	assert.NoError(t, r.Close())
}
