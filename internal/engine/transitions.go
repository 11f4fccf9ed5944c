package engine

var transitions = map[Phase]EffectType{
	PhasePregame: EffectLockIn,
	PhaseInGame:  EffectMatchStarted,
	PhaseIdle:    EffectMatchEnded,
}
