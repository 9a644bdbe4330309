package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/roach88/cascade/internal/ir"
)

// Mode is the addressing shape of a scope.
type Mode int

const (
	// ModeFlat keys records by id alone (single-operation fetch path).
	ModeFlat Mode = iota
	// ModeByModel keys records by model, then id (bulk pre-warm).
	ModeByModel
)

func (m Mode) String() string {
	if m == ModeByModel {
		return "by_model"
	}
	return "flat"
}

// Scope id prefixes. The prefix alone decides the addressing mode.
const (
	OperationPrefix = "op:"
	BulkPrefix      = "bulk:"
)

// ModeForID returns the addressing mode declared by a scope id.
// Ids without the bulk prefix are flat.
func ModeForID(id string) Mode {
	if strings.HasPrefix(id, BulkPrefix) {
		return ModeByModel
	}
	return ModeFlat
}

// Stats counts scope lookups.
type Stats struct {
	Hits   int `json:"hits"`
	Misses int `json:"misses"`
}

// recordKey identifies a record. Ids are only unique within a model.
type recordKey struct {
	modelID string
	id      string
}

// Scope memoizes the records fetched by one operation plus the records
// found missing. A deleted record is never served or refetched for the
// rest of the scope.
//
// Thread-safety: all methods are safe for concurrent use.
type Scope struct {
	id   string
	mode Mode

	mu       sync.Mutex
	flat     map[recordKey]ir.Record
	byModel  map[string]map[string]ir.Record
	deleted  map[recordKey]bool
	disposed bool
	stats    Stats

	// refresh pushes the scope's expiry forward in its registry; it runs
	// at most once per refreshEvery while the scope is in use.
	refresh      func()
	refreshEvery time.Duration
	refreshed    time.Time
}

func newScope(id string) *Scope {
	s := &Scope{
		id:      id,
		mode:    ModeForID(id),
		deleted: make(map[recordKey]bool),
	}
	if s.mode == ModeByModel {
		s.byModel = make(map[string]map[string]ir.Record)
	} else {
		s.flat = make(map[recordKey]ir.Record)
	}
	return s
}

// keepAlive refreshes the registry expiry of a scope that is still used.
func (s *Scope) keepAlive() {
	if s.refresh == nil {
		return
	}
	s.mu.Lock()
	now := time.Now()
	due := !s.disposed && now.Sub(s.refreshed) >= s.refreshEvery
	if due {
		s.refreshed = now
	}
	s.mu.Unlock()

	if due {
		s.refresh()
	}
}

// ID returns the scope id.
func (s *Scope) ID() string { return s.id }

// Mode returns the addressing mode.
func (s *Scope) Mode() Mode { return s.mode }

// Get returns a copy of a cached record.
func (s *Scope) Get(modelID, id string) (ir.Record, bool) {
	s.keepAlive()
	s.mu.Lock()
	defer s.mu.Unlock()

	k := recordKey{modelID, id}
	if s.deleted[k] {
		s.stats.Hits++
		return ir.Record{}, false
	}

	var rec ir.Record
	var ok bool
	if s.mode == ModeByModel {
		rec, ok = s.byModel[modelID][id]
	} else {
		rec, ok = s.flat[k]
	}
	if !ok {
		s.stats.Misses++
		return ir.Record{}, false
	}
	s.stats.Hits++
	return rec.Clone(), true
}

// Put caches a record. Records marked deleted are ignored.
func (s *Scope) Put(rec ir.Record) {
	s.keepAlive()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(rec)
}

func (s *Scope) putLocked(rec ir.Record) {
	k := recordKey{rec.ModelID, rec.ID}
	if s.deleted[k] {
		return
	}
	if s.mode == ModeFlat {
		s.flat[k] = rec.Clone()
		return
	}
	byID, ok := s.byModel[rec.ModelID]
	if !ok {
		byID = make(map[string]ir.Record)
		s.byModel[rec.ModelID] = byID
	}
	byID[rec.ID] = rec.Clone()
}

// Warm bulk-loads records of one model.
func (s *Scope) Warm(modelID string, records []ir.Record) {
	s.keepAlive()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if rec.ModelID == "" {
			rec.ModelID = modelID
		}
		s.putLocked(rec)
	}
}

// MarkDeleted records that a record no longer exists and drops any cached
// copy. Records of other models with the same id are unaffected.
func (s *Scope) MarkDeleted(modelID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := recordKey{modelID, id}
	s.deleted[k] = true
	delete(s.flat, k)
	delete(s.byModel[modelID], id)
}

// IsDeleted reports whether a record was marked deleted in this scope.
func (s *Scope) IsDeleted(modelID, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted[recordKey{modelID, id}]
}

// Len returns the number of cached records.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeFlat {
		return len(s.flat)
	}
	n := 0
	for _, byID := range s.byModel {
		n += len(byID)
	}
	return n
}

// Stats returns the lookup counters.
func (s *Scope) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// markDisposed flags the scope released. It reports whether it already
// was and how many records it dropped.
func (s *Scope) markDisposed() (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.disposed
	n := len(s.flat)
	for _, byID := range s.byModel {
		n += len(byID)
	}
	s.disposed = true
	s.flat = map[recordKey]ir.Record{}
	s.byModel = map[string]map[string]ir.Record{}
	return was, n
}
