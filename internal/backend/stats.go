package backend

import "time"

// BatchTimes holds the timestamps collected while executing one batch.
type BatchTimes struct {
	ExecStart    time.Time
	ComputeStart time.Time
	ComputeEnd   time.Time
	ExecEnd      time.Time
}

// StatsReporter receives per-request and per-batch statistics after all
// responses of a batch are final. Implementations must not block.
type StatsReporter interface {
	ReportRequest(req Request, success bool, t BatchTimes)
	// ReportBatch receives the total element batch size: the sum of the
	// per-request sub-sizes, or the request count for non-batching models.
	ReportBatch(totalBatchSize int, t BatchTimes)
}

type nopStats struct{}

func (nopStats) ReportRequest(Request, bool, BatchTimes) {}
func (nopStats) ReportBatch(int, BatchTimes)             {}
