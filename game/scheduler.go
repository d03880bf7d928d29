package game

import (
	"cmp"
	"slices"
	"time"
)

type deadlineKind int

const (
	introDone deadlineKind = iota
	choiceDeadline
	rollDeadline
	narrativeDue
	waveEndDue
	voteDeadline
)

// scheduler holds a room's pending deadlines. Phase deadlines belong to the
// current phase token and are all dropped by reset; grace deadlines are per
// player and survive phase changes.
type scheduler struct {
	token uint64
	phase map[deadlineKind]time.Time
	grace map[string]time.Time
}

func newScheduler() *scheduler {
	return &scheduler{
		phase: make(map[deadlineKind]time.Time),
		grace: make(map[string]time.Time),
	}
}

// reset cancels every phase deadline and returns the new phase token.
func (s *scheduler) reset() uint64 {
	s.token++
	clear(s.phase)
	return s.token
}

func (s *scheduler) arm(kind deadlineKind, at time.Time) {
	s.phase[kind] = at
}

func (s *scheduler) deadline(kind deadlineKind) (time.Time, bool) {
	at, ok := s.phase[kind]
	return at, ok
}

// popDue removes and returns the earliest phase deadline that is due.
func (s *scheduler) popDue(now time.Time) (deadlineKind, bool) {
	var (
		best   deadlineKind
		bestAt time.Time
		found  bool
	)
	for kind, at := range s.phase {
		if at.After(now) {
			continue
		}
		if !found || at.Before(bestAt) || (at.Equal(bestAt) && kind < best) {
			best, bestAt, found = kind, at, true
		}
	}
	if found {
		delete(s.phase, best)
	}
	return best, found
}

func (s *scheduler) armGrace(playerID string, at time.Time) {
	s.grace[playerID] = at
}

func (s *scheduler) cancelGrace(playerID string) bool {
	_, ok := s.grace[playerID]
	delete(s.grace, playerID)
	return ok
}

// dueGrace removes and returns the players whose grace ran out, oldest first.
func (s *scheduler) dueGrace(now time.Time) []string {
	var due []string
	for id, at := range s.grace {
		if !at.After(now) {
			due = append(due, id)
		}
	}
	slices.SortFunc(due, func(a, b string) int {
		return cmp.Or(s.grace[a].Compare(s.grace[b]), cmp.Compare(a, b))
	})
	for _, id := range due {
		delete(s.grace, id)
	}
	return due
}

func (s *scheduler) clearGrace() {
	clear(s.grace)
}

func (s *scheduler) pending() int {
	return len(s.phase) + len(s.grace)
}
