package recorder

import "RegimeSentinel/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ *RunRecord) error                        { return nil }
func (n *NoopRecorder) RecordStates(_ string, _ []model.StateSummary) error { return nil }
func (n *NoopRecorder) RecordTrades(_ string, _ []model.TradeEvent) error   { return nil }
func (n *NoopRecorder) RecentRuns(_ int) ([]RunRecord, error)               { return nil, nil }
func (n *NoopRecorder) CountTrades(_ string) (int, error)                   { return 0, nil }
func (n *NoopRecorder) Close() error                                        { return nil }
