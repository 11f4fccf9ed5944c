package engine

import "fmt"

func NewIdleState() State {
	return State{Phase: PhaseIdle}
}

// ParsePhase maps a loopState string onto a Phase.
func ParsePhase(raw string) (Phase, error) {
	p := Phase(raw)
	if _, ok := transitions[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPhase, raw)
	}
	return p, nil
}

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePregame:
		return "pregame"
	case PhaseInGame:
		return "ingame"
	default:
		return string(p)
	}
}

// HasMatch reports whether the phase carries a match id.
func (p Phase) HasMatch() bool {
	return p == PhasePregame || p == PhaseInGame
}
