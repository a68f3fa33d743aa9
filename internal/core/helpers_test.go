package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fixedNow is the clock used by tests that depend on the current date.
var fixedNow = time.Date(2024, 5, 20, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// sequentialIDs returns a generator yielding row-1, row-2, ...
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("row-%d", n)
	}
}

// sheet builds a RawTable from a header and data rows.
func sheet(header []any, rows ...[]any) RawTable {
	table := RawTable{header}
	return append(table, rows...)
}

// tableDecoder ignores the file and returns table.
func tableDecoder(table RawTable) Decoder {
	return DecoderFunc(func(string, []byte) (RawTable, error) {
		return table, nil
	})
}

// fakeIssuer records every call and answers with result or the error
// configured for the request's description.
type fakeIssuer struct {
	mu       sync.Mutex
	calls    []IssueRequest
	failOn   map[string]error
	block    chan struct{}
	started  chan string
	inFlight int
	maxSeen  int
}

func newFakeIssuer() *fakeIssuer {
	return &fakeIssuer{failOn: make(map[string]error)}
}

func (f *fakeIssuer) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	block, started := f.block, f.started
	err := f.failOn[req.Payload.Draft.Item.Description]
	n := len(f.calls)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if started != nil {
		started <- req.Payload.Draft.Item.Description
	}
	if block != nil {
		<-block
	}

	if err != nil {
		return nil, err
	}
	return &IssueResult{
		AuthCode:       fmt.Sprintf("7400000000000%d", n),
		AuthCodeExpiry: "2024-05-30",
		DocumentNumber: fmt.Sprintf("0003-0000000%d", n),
	}, nil
}

func (f *fakeIssuer) Calls() []IssueRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]IssueRequest(nil), f.calls...)
}

func (f *fakeIssuer) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxSeen
}

// fakeRecorder captures recorder callbacks.
type fakeRecorder struct {
	mu       sync.Mutex
	attempts []Attempt
	parses   int
	failures int
	started  int
	finished int
}

func (r *fakeRecorder) RecordAttempt(_ context.Context, a Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
}

func (r *fakeRecorder) RecordParse(_ context.Context, _, _ int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failures++
		return
	}
	r.parses++
}

func (r *fakeRecorder) BatchStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *fakeRecorder) BatchFinished() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished++
}

func (r *fakeRecorder) Attempts() []Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Attempt(nil), r.attempts...)
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
