package services

import (
	"context"
	"errors"
	"sort"
	"sync"

	"mediaserver/store"
	"mediaserver/types"
)

// memoryStore is an in-memory RecordStore
type memoryStore struct {
	mu          sync.Mutex
	nextID      int64
	rows        map[int64]*types.DownloadRecord
	inserts     int
	insertErr   error
	finalizeErr error
	failOn      map[int64]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[int64]*types.DownloadRecord), failOn: make(map[int64]error)}
}

func (m *memoryStore) Insert(_ context.Context, url string, mediaType types.MediaType, startTime string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	m.nextID++
	m.rows[m.nextID] = &types.DownloadRecord{ID: m.nextID, URL: url, MediaType: mediaType, StartTime: startTime}
	return m.nextID, nil
}

func (m *memoryStore) Finalize(_ context.Context, id int64, title *string, endTime string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finalizeErr != nil {
		return m.finalizeErr
	}
	if row, ok := m.rows[id]; ok && row.EndTime == nil {
		row.Title = title
		row.EndTime = &endTime
	}
	return nil
}

func (m *memoryStore) UpdateFields(_ context.Context, id int64, u store.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn[id]; err != nil {
		return err
	}
	row, ok := m.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	if u.Title.Set {
		row.Title = u.Title.Ptr()
	}
	if u.MediaType.Set {
		if u.MediaType.Null {
			row.MediaType = ""
		} else {
			row.MediaType = u.MediaType.Value
		}
	}
	return nil
}

func (m *memoryStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn[id]; err != nil {
		return err
	}
	if _, ok := m.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memoryStore) Get(_ context.Context, id int64) (*types.DownloadRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (m *memoryStore) ListAll(context.Context) ([]types.DownloadRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]types.DownloadRecord, 0, len(m.rows))
	for _, row := range m.rows {
		records = append(records, *row)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID > records[j].ID })
	return records, nil
}

func (m *memoryStore) seed(urls ...string) {
	for _, url := range urls {
		_, _ = m.Insert(context.Background(), url, types.MediaTypeImage, "2025-01-01 10:00:00")
	}
	m.inserts = 0
}

// eventRecorder is an Announcer that keeps every event
type eventRecorder struct {
	mu     sync.Mutex
	events []types.Event
}

func (r *eventRecorder) Announce(event types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) kinds() []types.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// stubProber answers from a fixed table and counts calls
type stubProber struct {
	mu      sync.Mutex
	answers map[string][]ProbeEntry
	calls   []string
	err     error
}

func (p *stubProber) Probe(_ context.Context, url string) ([]ProbeEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, url)
	if p.err != nil {
		return nil, p.err
	}
	return p.answers[url], nil
}

// listing builds a homogeneous level-6 listing with one metadata row
func listing(urls ...string) []ProbeEntry {
	entries := []ProbeEntry{{Level: 1, Content: map[string]any{"category": "test"}}}
	for _, url := range urls {
		entries = append(entries, ProbeEntry{Level: 6, Content: url})
	}
	return entries
}

// stubExecutor returns a per-URL result, success by default
type stubExecutor struct {
	mu       sync.Mutex
	results  map[string]ExecResult
	requests []ExecRequest
}

func (e *stubExecutor) Execute(_ context.Context, req ExecRequest) ExecResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)
	if res, ok := e.results[req.URL]; ok {
		return res
	}
	return ExecResult{Success: true, Output: "ok"}
}

type stubScraper struct {
	title string
	err   error
}

func (s stubScraper) Title(context.Context, string) (string, error) {
	return s.title, s.err
}

// stubRunner records invocations and replays a canned result
type stubRunner struct {
	result CommandResult
	err    error
	calls  [][]string
}

func (r *stubRunner) Run(_ context.Context, name string, args ...string) (CommandResult, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.result, r.err
}

var errBoom = errors.New("boom")
