package state

import (
	"sync"
	"time"

	"github.com/five82/tunerwatch/internal/mirakurun"
)

// Snapshot is an immutable view of the mirrored server state.
type Snapshot struct {
	Connection          ConnectionState
	Label               string
	Activity            Activity
	Tuners              []mirakurun.Tuner
	HasTuners           bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int
}

// IsOffline reports whether no server data can be trusted right now.
func (s Snapshot) IsOffline() bool {
	return s.Connection != Connected
}

// Store holds the tuner table together with the connection and activity
// state. The watchdog is its only writer; readers take snapshots.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// ReplaceTuners swaps in a freshly fetched tuner list and recomputes the
// activity state.
func (s *Store) ReplaceTuners(tuners []mirakurun.Tuner) Activity {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Tuners = cloneTuners(tuners)
	s.snapshot.HasTuners = true
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.Activity = Aggregate(s.snapshot.Tuners)
	return s.snapshot.Activity
}

// PutTuner replaces the record at tuner.Index, growing the table when the
// index lies past its end. Gaps are filled with placeholder records that
// only carry their index.
func (s *Store) PutTuner(tuner mirakurun.Tuner) {
	if tuner.Index < 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.snapshot.Tuners) <= tuner.Index {
		s.snapshot.Tuners = append(s.snapshot.Tuners, mirakurun.Tuner{Index: len(s.snapshot.Tuners)})
	}
	s.snapshot.Tuners[tuner.Index] = tuner.Clone()
	s.snapshot.LastUpdated = time.Now()
}

// Recompute derives the activity state from the current table, stores it
// and returns it.
func (s *Store) Recompute() Activity {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Activity = Aggregate(s.snapshot.Tuners)
	return s.snapshot.Activity
}

// SetConnection records a connection state transition. A non-nil err
// counts as a consecutive failure; reaching Connected resets the count.
func (s *Store) SetConnection(conn ConnectionState, label string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Connection = conn
	s.snapshot.Label = label
	switch {
	case err != nil:
		s.snapshot.LastError = err
		s.snapshot.ConsecutiveFailures++
	case conn == Connected:
		s.snapshot.LastError = nil
		s.snapshot.ConsecutiveFailures = 0
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Tuners = cloneTuners(s.snapshot.Tuners)
	if snap.Label == "" {
		snap.Label = LabelUnknown
	}
	return snap
}

func cloneTuners(tuners []mirakurun.Tuner) []mirakurun.Tuner {
	if len(tuners) == 0 {
		return nil
	}
	dup := make([]mirakurun.Tuner, len(tuners))
	for i, tuner := range tuners {
		dup[i] = tuner.Clone()
	}
	return dup
}
