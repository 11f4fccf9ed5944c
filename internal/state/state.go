package state

import (
	"sync"

	"github.com/kjzl/valorant-instalock/internal/engine"
	"github.com/kjzl/valorant-instalock/internal/metrics"
	"github.com/kjzl/valorant-instalock/internal/types"
)

// State is the shared, mutable view of one game session. Credentials and
// phase live behind separate locks so a token refresh never waits on a
// phase transition. Locks are never held across I/O.
type State struct {
	binding types.Binding
	subject string

	credsMu sync.RWMutex
	creds   types.Credentials

	phaseMu sync.Mutex
	phase   engine.State
}

func New(binding types.Binding, subject string, creds types.Credentials) *State {
	return &State{
		binding: binding,
		subject: subject,
		creds:   creds,
		phase:   engine.NewIdleState(),
	}
}

func (s *State) Binding() types.Binding { return s.binding }
func (s *State) Subject() string        { return s.subject }

// Credentials returns the latest credentials and whether they are usable.
func (s *State) Credentials() (types.Credentials, bool) {
	s.credsMu.RLock()
	defer s.credsMu.RUnlock()
	return s.creds, s.creds.Valid()
}

func (s *State) SetCredentials(c types.Credentials) {
	s.credsMu.Lock()
	defer s.credsMu.Unlock()
	s.creds = c
}

func (s *State) Phase() engine.State {
	s.phaseMu.Lock()
	defer s.phaseMu.Unlock()
	return s.phase
}

// MatchID returns the current match id, or false in the idle phase.
func (s *State) MatchID() (string, bool) {
	p := s.Phase()
	return p.MatchID, p.Phase.HasMatch()
}

// Apply runs the transition for r atomically and returns the effect the
// caller must carry out. The state is unchanged on error.
func (s *State) Apply(r engine.Report) (engine.Effect, error) {
	s.phaseMu.Lock()
	defer s.phaseMu.Unlock()

	effect, next, err := engine.Apply(s.phase, r)
	if err != nil {
		return engine.Effect{}, err
	}
	s.phase = next
	metrics.RecordTransition(next.Phase.String())
	return effect, nil
}

// Restore sets the phase directly. Bootstrap uses it after probing the
// remote API; it bypasses transition effects.
func (s *State) Restore(p engine.State) {
	s.phaseMu.Lock()
	defer s.phaseMu.Unlock()
	s.phase = p
}
