package core

import (
	"context"
	"time"
)

// Attempt describes one finished submission.
type Attempt struct {
	SessionID      string
	RowID          string
	SourceRow      int
	PointOfSale    int
	IdempotencyKey string
	Status         RowStatus
	Message        string
	AuthCode       string
	ErrorCode      string
	ClientIP       string
	UserAgent      string
	Duration       time.Duration
	At             time.Time
}

// Recorder observes batch activity. Implementations must not block for long
// and must not fail the caller; the batch ignores anything they do.
type Recorder interface {
	RecordAttempt(ctx context.Context, a Attempt)
	RecordParse(ctx context.Context, rows, warnings int, err error)
	BatchStarted()
	BatchFinished()
}

// Recorders fans out to several recorders.
type Recorders []Recorder

func (rs Recorders) RecordAttempt(ctx context.Context, a Attempt) {
	for _, r := range rs {
		r.RecordAttempt(ctx, a)
	}
}

func (rs Recorders) RecordParse(ctx context.Context, rows, warnings int, err error) {
	for _, r := range rs {
		r.RecordParse(ctx, rows, warnings, err)
	}
}

func (rs Recorders) BatchStarted() {
	for _, r := range rs {
		r.BatchStarted()
	}
}

func (rs Recorders) BatchFinished() {
	for _, r := range rs {
		r.BatchFinished()
	}
}
