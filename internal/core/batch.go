package core

// batch.go owns the per-row lifecycle of one import.
//
// Row states move pending -> processing -> success | error, and error rows
// may be submitted again. Success is terminal so a row is never issued twice.
// Every mutation of the row list happens here, under mu, and only while the
// batch gate is held.
//
// Submissions are strictly sequential: the issuance service numbers documents
// per point of sale, so rows are sent one at a time in file order. There is
// no automatic retry and no cancellation of an in-flight batch.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/facturador/internal/logging"
	"github.com/google/uuid"
)

// Decoder turns uploaded file bytes into the first sheet of cells.
type Decoder interface {
	Decode(fileName string, data []byte) (RawTable, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(fileName string, data []byte) (RawTable, error)

func (f DecoderFunc) Decode(fileName string, data []byte) (RawTable, error) {
	return f(fileName, data)
}

// EventType classifies a batch event.
type EventType string

const (
	EventParsed        EventType = "parsed"
	EventRow           EventType = "row"
	EventBatchStarted  EventType = "batch_started"
	EventBatchFinished EventType = "batch_finished"
	EventReset         EventType = "reset"
)

// Event is broadcast to subscribers on every state change.
type Event struct {
	Type   EventType  `json:"type"`
	Row    *ParsedRow `json:"row,omitempty"`
	Counts Counts     `json:"counts"`
}

// Snapshot is a consistent copy of batch state.
type Snapshot struct {
	SessionID string      `json:"sessionId"`
	FileName  string      `json:"fileName,omitempty"`
	Rows      []ParsedRow `json:"rows"`
	Warnings  []string    `json:"warnings"`
	Counts    Counts      `json:"counts"`
	Busy      bool        `json:"busy"`
}

// BatchConfig holds the collaborators of a Batch.
type BatchConfig struct {
	SessionID string
	Decoder   Decoder
	Assembler *Assembler
	Issuer    Issuer
	Recorder  Recorder

	// NewIdempotencyKey defaults to uuid.NewString.
	NewIdempotencyKey func() string

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Batch holds the parsed rows of one session and drives their submission.
type Batch struct {
	id        string
	decoder   Decoder
	assembler *Assembler
	issuer    Issuer
	recorder  Recorder
	newKey    func() string
	now       func() time.Time
	gate      *Gate

	mu       sync.RWMutex
	rows     []ParsedRow
	index    map[string]int
	warnings []string
	fileName string
	lastUsed time.Time

	listenerMu sync.Mutex
	listeners  []chan Event
}

// NewBatch creates an empty batch.
func NewBatch(cfg BatchConfig) *Batch {
	b := &Batch{
		id:        cfg.SessionID,
		decoder:   cfg.Decoder,
		assembler: cfg.Assembler,
		issuer:    cfg.Issuer,
		recorder:  cfg.Recorder,
		newKey:    cfg.NewIdempotencyKey,
		now:       cfg.Clock,
		gate:      NewGate(1),
		index:     make(map[string]int),
	}
	if b.now == nil {
		b.now = time.Now
	}
	b.lastUsed = b.now()
	if b.assembler == nil {
		b.assembler = NewAssembler()
	}
	if b.recorder == nil {
		b.recorder = Recorders(nil)
	}
	if b.newKey == nil {
		b.newKey = uuid.NewString
	}
	return b
}

// ID returns the session id of the batch.
func (b *Batch) ID() string { return b.id }

// Busy reports whether a parse, reset or submission holds the batch.
func (b *Batch) Busy() bool { return b.gate.Busy() }

// Load decodes and parses a file. On success rows and warnings are replaced;
// on failure the previous state is kept and the error is a *FatalParseError.
func (b *Batch) Load(ctx context.Context, fileName string, data []byte) (*ParseResult, error) {
	if !b.gate.TryAcquire() {
		return nil, ErrBusy
	}
	defer b.gate.Release()

	logger := logging.WithFields(ctx, "session_id", b.id, "file", fileName)

	result, err := b.parse(fileName, data)
	if err != nil {
		logger.Warn("parse failed", "error", err)
		b.recorder.RecordParse(ctx, 0, 0, err)
		return nil, err
	}

	b.mu.Lock()
	b.rows = result.Rows
	b.warnings = result.Warnings
	b.fileName = fileName
	b.index = make(map[string]int, len(result.Rows))
	for i, row := range result.Rows {
		b.index[row.ID] = i
	}
	b.lastUsed = b.now()
	counts := b.countsLocked()
	out := &ParseResult{Rows: b.rowsLocked(), Warnings: append([]string(nil), b.warnings...)}
	b.mu.Unlock()

	logger.Info("file parsed", "rows", counts.Total, "warnings", len(out.Warnings))
	b.recorder.RecordParse(ctx, counts.Total, len(out.Warnings), nil)
	b.notify(Event{Type: EventParsed, Counts: counts})

	return out, nil
}

func (b *Batch) parse(fileName string, data []byte) (*ParseResult, error) {
	if len(data) == 0 {
		return nil, &FatalParseError{Err: ErrEmptyFile}
	}
	if b.decoder == nil {
		return nil, &FatalParseError{Err: fmt.Errorf("no decoder configured")}
	}
	table, err := b.decoder.Decode(fileName, data)
	if err != nil {
		return nil, &FatalParseError{Err: err}
	}
	return b.assembler.Parse(table)
}

// SubmitAll submits every pending or error row in file order and waits for
// each call to finish before the next. It returns ErrBusy without touching
// any row if the batch is already held. Row failures never abort the loop.
func (b *Batch) SubmitAll(ctx context.Context) (Counts, error) {
	if !b.gate.TryAcquire() {
		return b.Counts(), ErrBusy
	}
	defer b.gate.Release()

	return b.runAll(ctx), nil
}

// StartSubmitAll takes the busy flag synchronously and runs the batch in the
// background. done, if non-nil, is called with the final counts.
func (b *Batch) StartSubmitAll(ctx context.Context, done func(Counts)) error {
	if !b.gate.TryAcquire() {
		return ErrBusy
	}

	ctx = context.WithoutCancel(ctx)
	go func() {
		var counts Counts
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in batch submission", "session_id", b.id, "panic", r)
				b.failInFlight()
				counts = b.Counts()
			}
			b.gate.Release()
			if done != nil {
				done(counts)
			}
		}()
		counts = b.runAll(ctx)
	}()
	return nil
}

func (b *Batch) runAll(ctx context.Context) Counts {
	logger := logging.WithFields(ctx, "session_id", b.id)

	b.recorder.BatchStarted()
	defer b.recorder.BatchFinished()

	b.mu.RLock()
	ids := make([]string, len(b.rows))
	for i, row := range b.rows {
		ids[i] = row.ID
	}
	b.mu.RUnlock()

	b.notify(Event{Type: EventBatchStarted, Counts: b.Counts()})
	logger.Info("batch started", "rows", len(ids))

	for _, id := range ids {
		// Ineligible rows come back with ErrRowNotEligible and stay as they are.
		_, _ = b.submit(ctx, id)
	}

	counts := b.Counts()
	logger.Info("batch finished",
		"success", counts.Success,
		"error", counts.Error,
		"pending", counts.Pending,
	)
	b.notify(Event{Type: EventBatchFinished, Counts: counts})
	return counts
}

// SubmitOne submits a single row. It returns ErrBusy while any other
// operation holds the batch, ErrRowNotFound for an unknown id and
// ErrRowNotEligible for rows in processing or success; in each of those cases
// nothing changes. A rejected submission is not an error: the returned row
// carries status error and the failure message.
func (b *Batch) SubmitOne(ctx context.Context, rowID string) (ParsedRow, error) {
	if !b.gate.TryAcquire() {
		return ParsedRow{}, ErrBusy
	}
	defer b.gate.Release()

	return b.submit(ctx, rowID)
}

// submit runs one row through processing. The gate must be held.
func (b *Batch) submit(ctx context.Context, rowID string) (ParsedRow, error) {
	b.mu.Lock()
	i, ok := b.index[rowID]
	if !ok {
		b.mu.Unlock()
		return ParsedRow{}, ErrRowNotFound
	}
	row := &b.rows[i]
	if !row.Status.Eligible() {
		out := row.clone()
		b.mu.Unlock()
		return out, ErrRowNotEligible
	}
	row.Status = StatusProcessing
	row.Message = ""
	payload := row.Payload
	sourceRow := row.SourceRow
	processing := row.clone()
	b.lastUsed = b.now()
	b.mu.Unlock()

	b.notify(Event{Type: EventRow, Row: &processing, Counts: b.Counts()})

	key := b.newKey()
	logger := logging.WithFields(ctx,
		"session_id", b.id,
		"row_id", rowID,
		"source_row", sourceRow,
		"idempotency_key", key,
	)

	start := time.Now()
	result, err := b.issue(context.WithoutCancel(ctx), IssueRequest{
		IdempotencyKey: key,
		Payload:        payload,
	})
	elapsed := time.Since(start)

	origin := OriginFromContext(ctx)
	attempt := Attempt{
		SessionID:      b.id,
		RowID:          rowID,
		SourceRow:      sourceRow,
		PointOfSale:    payload.Draft.PointOfSale,
		IdempotencyKey: key,
		ClientIP:       origin.ClientIP,
		UserAgent:      origin.UserAgent,
		Duration:       elapsed,
		At:             start,
	}

	b.mu.Lock()
	row = &b.rows[i]
	if err != nil {
		row.Status = StatusError
		row.Message = IssueFailureMessage(err)
		if ie, ok := asIssueError(err); ok {
			attempt.ErrorCode = ie.Code
		}
	} else {
		if result == nil {
			result = &IssueResult{}
		}
		row.Status = StatusSuccess
		row.Response = result
		row.Message = result.Summary()
		attempt.AuthCode = result.AuthCode
	}
	attempt.Status = row.Status
	attempt.Message = row.Message
	out := row.clone()
	b.mu.Unlock()

	if err != nil {
		logger.Warn("submission failed", "error", err, "duration_ms", elapsed.Milliseconds())
	} else {
		logger.Info("submission succeeded", "auth_code", result.AuthCode, "duration_ms", elapsed.Milliseconds())
	}

	b.recorder.RecordAttempt(ctx, attempt)
	b.notify(Event{Type: EventRow, Row: &out, Counts: b.Counts()})

	return out, nil
}

// failInFlight moves rows stuck in processing to error.
func (b *Batch) failInFlight() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.rows {
		if b.rows[i].Status == StatusProcessing {
			b.rows[i].Status = StatusError
			b.rows[i].Message = FallbackIssueMessage
		}
	}
}

// issue calls the issuer, turning a panic into an error so the row leaves
// processing.
func (b *Batch) issue(ctx context.Context, req IssueRequest) (result *IssueResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in issuer", "session_id", b.id, "idempotency_key", req.IdempotencyKey, "panic", r)
			result, err = nil, fmt.Errorf("issuer panic: %v", r)
		}
	}()
	return b.issuer.Issue(ctx, req)
}

// Reset discards rows and warnings. It returns ErrBusy while a submission runs.
func (b *Batch) Reset() error {
	if !b.gate.TryAcquire() {
		return ErrBusy
	}
	defer b.gate.Release()

	b.mu.Lock()
	b.rows = nil
	b.warnings = nil
	b.fileName = ""
	b.index = make(map[string]int)
	b.lastUsed = b.now()
	b.mu.Unlock()

	b.notify(Event{Type: EventReset})
	return nil
}

// Rows returns copies of the rows in file order.
func (b *Batch) Rows() []ParsedRow {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rowsLocked()
}

// Row returns a copy of one row.
func (b *Batch) Row(rowID string) (ParsedRow, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i, ok := b.index[rowID]
	if !ok {
		return ParsedRow{}, ErrRowNotFound
	}
	return b.rows[i].clone(), nil
}

// Warnings returns the warnings of the last successful parse.
func (b *Batch) Warnings() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.warnings...)
}

// Counts aggregates row statuses.
func (b *Batch) Counts() Counts {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.countsLocked()
}

// Snapshot returns rows, warnings, counts and the busy flag together.
func (b *Batch) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Snapshot{
		SessionID: b.id,
		FileName:  b.fileName,
		Rows:      b.rowsLocked(),
		Warnings:  append([]string{}, b.warnings...),
		Counts:    b.countsLocked(),
		Busy:      b.gate.Busy(),
	}
}

// LastUsed returns when the batch last changed.
func (b *Batch) LastUsed() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUsed
}

// WaitIdle blocks until no operation holds the batch or ctx is done.
func (b *Batch) WaitIdle(ctx context.Context) error {
	return b.gate.WaitForDrain(ctx)
}

func (b *Batch) rowsLocked() []ParsedRow {
	out := make([]ParsedRow, len(b.rows))
	for i, row := range b.rows {
		out[i] = row.clone()
	}
	return out
}

func (b *Batch) countsLocked() Counts {
	c := Counts{Total: len(b.rows)}
	for _, row := range b.rows {
		switch row.Status {
		case StatusPending:
			c.Pending++
		case StatusProcessing:
			c.Processing++
		case StatusSuccess:
			c.Success++
		case StatusError:
			c.Error++
		}
	}
	return c
}

// Subscribe returns a channel of batch events. Slow subscribers miss events
// rather than block the batch. Call the returned func to unsubscribe.
func (b *Batch) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)

	b.listenerMu.Lock()
	b.listeners = append(b.listeners, ch)
	b.listenerMu.Unlock()

	select {
	case ch <- Event{Type: EventParsed, Counts: b.Counts()}:
	default:
	}

	return ch, func() { b.unsubscribe(ch) }
}

func (b *Batch) unsubscribe(ch chan Event) {
	b.listenerMu.Lock()
	defer b.listenerMu.Unlock()
	for i, l := range b.listeners {
		if l == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// closeListeners closes every subscriber channel.
func (b *Batch) closeListeners() {
	b.listenerMu.Lock()
	defer b.listenerMu.Unlock()
	for _, ch := range b.listeners {
		close(ch)
	}
	b.listeners = nil
}

func (b *Batch) notify(ev Event) {
	b.listenerMu.Lock()
	defer b.listenerMu.Unlock()
	for _, ch := range b.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}
