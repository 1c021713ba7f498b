package access

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tkingovr/portal/api"
)

// DefaultMaxRecords bounds the records kept in memory for queries.
const DefaultMaxRecords = 10000

// JSONLStore is an append-only JSONL access log with date-based rotation.
// With an empty directory it keeps records in memory only.
type JSONLStore struct {
	mu          sync.Mutex
	dir         string
	currentDate string
	file        *os.File
	writer      *bufio.Writer

	records []*api.AccessRecord
	maxMem  int

	subMu   sync.RWMutex
	subs    map[int]chan *api.AccessRecord
	nextSub int
}

// Option configures a JSONLStore.
type Option func(*JSONLStore)

// WithMaxRecords sets how many records are kept in memory.
func WithMaxRecords(n int) Option {
	return func(s *JSONLStore) {
		if n > 0 {
			s.maxMem = n
		}
	}
}

// NewJSONLStore creates a store writing one file per day to dir.
func NewJSONLStore(dir string, opts ...Option) (*JSONLStore, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating access log directory: %w", err)
		}
	}
	s := &JSONLStore{
		dir:    dir,
		maxMem: DefaultMaxRecords,
		subs:   make(map[int]chan *api.AccessRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewMemoryStore creates a store that never touches disk.
func NewMemoryStore(opts ...Option) *JSONLStore {
	s, _ := NewJSONLStore("", opts...)
	return s
}

func (s *JSONLStore) Write(_ context.Context, record *api.AccessRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	if s.dir != "" {
		if err := s.append(record); err != nil {
			return err
		}
	}

	if len(s.records) >= s.maxMem {
		s.records = s.records[1:]
	}
	s.records = append(s.records, record)

	s.notifySubscribers(record)
	return nil
}

func (s *JSONLStore) append(record *api.AccessRecord) error {
	dateStr := record.Timestamp.Format("2006-01-02")
	if dateStr != s.currentDate {
		if err := s.rotate(dateStr); err != nil {
			return err
		}
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling access record: %w", err)
	}
	if _, err := s.writer.Write(data); err != nil {
		return err
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return err
	}
	return s.writer.Flush()
}

func (s *JSONLStore) Query(_ context.Context, filter api.QueryFilter) ([]*api.AccessRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var results []*api.AccessRecord
	for _, r := range s.records {
		if matchesFilter(r, filter) {
			results = append(results, r)
		}
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(results) {
			return nil, nil
		}
		results = results[filter.Offset:]
	}
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}

	return results, nil
}

func (s *JSONLStore) Stats(_ context.Context) (*api.AccessStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &api.AccessStats{
		ByKind:   make(map[string]int),
		ByStatus: make(map[int]int),
		ByMethod: make(map[string]int),
	}

	for _, r := range s.records {
		stats.TotalRequests++
		switch r.Outcome {
		case api.OutcomeMatched:
			stats.MatchedCount++
		case api.OutcomeRejected:
			stats.RejectedCount++
		}
		if r.Kind != "" {
			stats.ByKind[r.Kind]++
		}
		if r.Status != 0 {
			stats.ByStatus[r.Status]++
		}
		if r.Method != "" {
			stats.ByMethod[r.Method]++
		}
	}

	return stats, nil
}

func (s *JSONLStore) Subscribe(_ context.Context) (<-chan *api.AccessRecord, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	ch := make(chan *api.AccessRecord, 100)
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}

	return ch, cancel
}

// Replay loads records from the day files in the store directory into
// memory, oldest first, skipping days before since. Lines that do not
// decode are skipped. It returns the number of records loaded.
func (s *JSONLStore) Replay(since time.Time) (int, error) {
	if s.dir == "" {
		return 0, nil
	}
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.jsonl"))
	if err != nil {
		return 0, fmt.Errorf("listing access log files: %w", err)
	}
	sort.Strings(paths)

	cutoff := ""
	if !since.IsZero() {
		cutoff = since.Format("2006-01-02")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := 0
	for _, path := range paths {
		if strings.TrimSuffix(filepath.Base(path), ".jsonl") < cutoff {
			continue
		}
		n, err := s.replayFile(path, since)
		if err != nil {
			return loaded, err
		}
		loaded += n
	}
	return loaded, nil
}

func (s *JSONLStore) replayFile(path string, since time.Time) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening access log file: %w", err)
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var r api.AccessRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if r.Timestamp.Before(since) {
			continue
		}
		if len(s.records) >= s.maxMem {
			s.records = s.records[1:]
		}
		s.records = append(s.records, &r)
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return n, nil
}

func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		if err := s.writer.Flush(); err != nil {
			return err
		}
	}
	if s.file != nil {
		err := s.file.Close()
		s.file, s.writer, s.currentDate = nil, nil, ""
		return err
	}
	return nil
}

func (s *JSONLStore) rotate(dateStr string) error {
	if s.writer != nil {
		if err := s.writer.Flush(); err != nil {
			return err
		}
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			return err
		}
	}

	path := filepath.Join(s.dir, dateStr+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("opening access log file: %w", err)
	}

	s.file = f
	s.writer = bufio.NewWriter(f)
	s.currentDate = dateStr
	return nil
}

func (s *JSONLStore) notifySubscribers(record *api.AccessRecord) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for _, ch := range s.subs {
		select {
		case ch <- record:
		default:
			// slow subscriber, drop
		}
	}
}

func matchesFilter(r *api.AccessRecord, f api.QueryFilter) bool {
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && r.Timestamp.After(f.Until) {
		return false
	}
	if f.Method != "" && !strings.EqualFold(r.Method, f.Method) {
		return false
	}
	if f.PathPrefix != "" && !strings.HasPrefix(r.Path, f.PathPrefix) {
		return false
	}
	if f.Outcome != "" && r.Outcome != f.Outcome {
		return false
	}
	if f.Status != 0 && r.Status != f.Status {
		return false
	}
	return true
}
