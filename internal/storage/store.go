package storage

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ringvault/ringvault/internal/clock"
	"github.com/ringvault/ringvault/internal/models"
)

// Deduper removes records that repeat a dedup key.
type Deduper interface {
	Dedupe(kind models.Kind, records []models.Record) ([]models.Record, int)
}

// PersistHook observes every snapshot write.
type PersistHook func(elapsed time.Duration, err error)

// Store holds every metric collection in memory. Writers serialize on a
// single lock for the whole merge, replace, stamp and persist sequence;
// readers get copies.
type Store struct {
	mu          sync.RWMutex
	collections map[models.Kind][]models.Record
	lastUpdate  map[models.Kind]string

	clock     clock.Clock
	file      *SnapshotFile
	onPersist PersistHook
	log       zerolog.Logger
}

// NewStore returns an empty store. file may be nil for a memory-only store.
func NewStore(file *SnapshotFile, c clock.Clock, log zerolog.Logger) *Store {
	if c == nil {
		c = clock.System{}
	}
	s := &Store{
		clock: c,
		file:  file,
		log:   log.With().Str("component", "store").Logger(),
	}
	s.restoreLocked(NewSnapshot())
	return s
}

// SetPersistHook registers fn to observe snapshot writes.
func (s *Store) SetPersistHook(fn PersistHook) {
	s.mu.Lock()
	s.onPersist = fn
	s.mu.Unlock()
}

// Load restores state from the snapshot file. A missing file leaves the store
// empty. When d is non-nil, collections are repaired so no key repeats.
func (s *Store) Load(d Deduper) error {
	if s.file == nil {
		return nil
	}
	snap, err := s.file.Load()
	if err != nil {
		return err
	}
	if snap == nil {
		s.log.Info().Str("path", s.file.Path()).Msg("no snapshot found, starting empty")
		return nil
	}

	if d != nil {
		for kind, recs := range snap.Collections {
			kept, dropped := d.Dedupe(kind, recs)
			if dropped > 0 {
				s.log.Warn().Str("kind", string(kind)).Int("dropped", dropped).
					Msg("snapshot held duplicate keys, keeping first occurrence")
			}
			snap.Collections[kind] = kept
		}
	}

	s.Restore(*snap)
	s.log.Info().Str("path", s.file.Path()).Interface("counts", snap.Counts()).Msg("snapshot restored")
	return nil
}

// Restore replaces the whole state. Kinds missing from snap become empty.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(snap)
}

func (s *Store) restoreLocked(snap Snapshot) {
	s.collections = make(map[models.Kind][]models.Record, len(models.AllKinds()))
	s.lastUpdate = make(map[models.Kind]string)
	for _, k := range models.AllKinds() {
		recs := snap.Collections[k]
		if recs == nil {
			recs = []models.Record{}
		}
		s.collections[k] = recs
	}
	for k, v := range snap.LastUpdate {
		s.lastUpdate[k] = v
	}
}

// Snapshot returns a copy of the full state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Collections: make(map[models.Kind][]models.Record, len(s.collections)),
		LastUpdate:  make(map[models.Kind]string, len(s.lastUpdate)),
	}
	for k, recs := range s.collections {
		snap.Collections[k] = copyRecords(recs)
	}
	for k, v := range s.lastUpdate {
		snap.LastUpdate[k] = v
	}
	return snap
}

// Collection returns a copy of one kind's records.
func (s *Store) Collection(kind models.Kind) []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyRecords(s.collections[kind])
}

// Replace swaps one kind's collection wholesale.
func (s *Store) Replace(kind models.Kind, records []models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[kind] = records
}

// Stamp sets last_update for kind to the current time.
func (s *Store) Stamp(kind models.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUpdate[kind] = clock.Format(s.clock.Now())
}

// LastUpdate returns a copy of the last_update mapping.
func (s *Store) LastUpdate() map[models.Kind]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.Kind]string, len(s.lastUpdate))
	for k, v := range s.lastUpdate {
		out[k] = v
	}
	return out
}

// Counts returns the number of records per kind.
func (s *Store) Counts() map[models.Kind]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.Kind]int, len(s.collections))
	for k, recs := range s.collections {
		out[k] = len(recs)
	}
	return out
}

// Apply runs fn against kind's current collection under the write lock.
// On success the result replaces the collection, last_update is stamped and
// the snapshot is persisted. A failed persist is logged, not returned: the
// in-memory state stays authoritative.
func (s *Store) Apply(kind models.Kind, fn func(existing []models.Record) ([]models.Record, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(copyRecords(s.collections[kind]))
	if err != nil {
		return err
	}
	if next == nil {
		next = []models.Record{}
	}
	s.collections[kind] = next
	s.lastUpdate[kind] = clock.Format(s.clock.Now())

	if err := s.persistLocked(); err != nil {
		s.log.Error().Err(err).Str("kind", string(kind)).Msg("failed to persist snapshot")
	}
	return nil
}

// Persist writes the current snapshot to disk.
func (s *Store) Persist() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	if s.file == nil {
		return nil
	}
	start := time.Now()
	err := s.file.Save(s.snapshotLocked())
	if s.onPersist != nil {
		s.onPersist(time.Since(start), err)
	}
	return err
}

func copyRecords(recs []models.Record) []models.Record {
	out := make([]models.Record, len(recs))
	copy(out, recs)
	return out
}
