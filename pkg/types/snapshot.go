package types

// Status is the control surface's view of the running session.
//
//	running:  bool   // a session is bootstrapped for the current lockfile
//	phase:    "MENUS" | "PREGAME" | "INGAME"
//	match_id: string // only while phase is PREGAME or INGAME
//	region, shard: string
//	paused:   bool   // automation interrupted by the operator
type Status struct {
	Running bool   `json:"running"`
	Phase   string `json:"phase,omitempty"`
	MatchID string `json:"match_id,omitempty"`
	Region  string `json:"region,omitempty"`
	Shard   string `json:"shard,omitempty"`
	Paused  bool   `json:"paused"`
}
