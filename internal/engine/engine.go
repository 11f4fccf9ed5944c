package engine

import (
	"errors"
	"fmt"
)

var ErrSamePhase = errors.New("phase unchanged")
var ErrUnknownPhase = errors.New("unknown phase")
var ErrMissingMatchID = errors.New("missing match id")

// Phase values match the loopState strings the game client reports.
type Phase string

const (
	PhaseIdle    Phase = "MENUS"
	PhasePregame Phase = "PREGAME"
	PhaseInGame  Phase = "INGAME"
)

type State struct {
	Phase   Phase
	MatchID string // empty iff Phase == PhaseIdle
}

// Report is a phase report for one subject as seen on the event channel.
type Report struct {
	Subject string
	Phase   Phase
	MatchID string
}

type EffectType string

const (
	EffectLockIn       EffectType = "LockIn"
	EffectMatchStarted EffectType = "MatchStarted"
	EffectMatchEnded   EffectType = "MatchEnded"
)

/*
	PREGAME -> set match id, lock in (after initial delay)
	INGAME  -> set match id, announce match start
	MENUS   -> clear match id, announce match end
	same phase as current -> ErrSamePhase, nothing happens
*/

type Effect struct {
	Type    EffectType
	MatchID string
}

// Apply computes the next state for a reported phase. A report equal to the
// current phase is rejected with ErrSamePhase and s is returned unchanged.
func Apply(s State, r Report) (Effect, State, error) {
	effect, ok := transitions[r.Phase]
	if !ok {
		return Effect{}, s, fmt.Errorf("%w: %q", ErrUnknownPhase, r.Phase)
	}

	if s.Phase == r.Phase {
		return Effect{}, s, ErrSamePhase
	}

	if r.Phase == PhaseIdle {
		return Effect{Type: effect}, State{Phase: PhaseIdle}, nil
	}

	if r.MatchID == "" {
		return Effect{}, s, fmt.Errorf("%w: phase %s", ErrMissingMatchID, r.Phase)
	}

	next := State{Phase: r.Phase, MatchID: r.MatchID}
	return Effect{Type: effect, MatchID: r.MatchID}, next, nil
}
