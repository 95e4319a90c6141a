package dataset

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeSentinel/internal/model"
)

func sampleBars() []model.Bar {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return []model.Bar{
		{Time: base, Open: 0.1, High: 0.30000000000000004, Low: 1e-9, Close: 64123.456789, Volume: 12345678901},
		{Time: base.Add(time.Hour), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 0},
		{Time: base.Add(90 * time.Minute), Open: 3, High: 3, Low: 3, Close: 3, Volume: 7.25},
	}
}

func TestBarsRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBars(&buf, sampleBars()))
	assert.True(t, strings.HasPrefix(buf.String(), "Datetime,Open,High,Low,Close,Volume\n"))

	got, err := ReadBars(&buf)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, want := range sampleBars() {
		assert.True(t, want.Time.Equal(got[i].Time))
		assert.Equal(t, want.Open, got[i].Open)
		assert.Equal(t, want.High, got[i].High)
		assert.Equal(t, want.Close, got[i].Close)
		assert.Equal(t, want.Volume, got[i].Volume)
	}
}

func TestSaveLoadBars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", FileName("BTC-USD", "1d"))
	require.NoError(t, SaveBars(path, sampleBars()))
	got, err := LoadBars(path)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, "BTC-USD_1d.csv", filepath.Base(path))
}

func TestReadBars_Errors(t *testing.T) {
	_, err := ReadBars(strings.NewReader(""))
	assert.ErrorIs(t, err, model.ErrDataInsufficient)

	_, err = ReadBars(strings.NewReader("Date,Open,High,Low,Close,Volume\n"))
	assert.ErrorIs(t, err, model.ErrShapeMismatch)

	_, err = ReadBars(strings.NewReader("Datetime,Open,High,Low,Close,Volume\n2024-01-01T00:00:00Z,1,2,x,4,5\n"))
	assert.Error(t, err)
}

func TestWriteSeries(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	err := WriteSeries(&buf,
		[]time.Time{base, base.Add(time.Hour)},
		[]float64{10, 11},
		[]int{0, 2},
		[]float64{1000, 1100},
	)
	require.NoError(t, err)
	assert.Equal(t, "Datetime,Close,State,Value\n"+
		"2024-05-01T00:00:00Z,10,0,1000\n"+
		"2024-05-01T01:00:00Z,11,2,1100\n", buf.String())

	err = WriteSeries(&buf, []time.Time{base}, []float64{1, 2}, []int{0}, []float64{1})
	assert.ErrorIs(t, err, model.ErrAlignment)
}
