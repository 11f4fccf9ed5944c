package types

import "github.com/kjzl/valorant-instalock/internal/engine"

// Credentials authenticate every call against the regional game servers.
type Credentials struct {
	AccessToken      string `json:"accessToken"`
	EntitlementToken string `json:"token"`
}

func (c Credentials) Valid() bool {
	return c.AccessToken != "" && c.EntitlementToken != ""
}

// Binding routes regional calls to one game-server cluster.
type Binding struct {
	Shard  string
	Region string
}

type EventKind string

const (
	EventCredentialsRefreshed EventKind = "CredentialsRefreshed"
	EventPhaseReport          EventKind = "PhaseReport"
)

// Event is the normalized vocabulary the session understands. Exactly one of
// Credentials or Report is meaningful, selected by Kind. Events are comparable.
type Event struct {
	Kind        EventKind
	Credentials Credentials
	Report      engine.Report
}

func CredentialsRefreshed(c Credentials) Event {
	return Event{Kind: EventCredentialsRefreshed, Credentials: c}
}

func PhaseReported(r engine.Report) Event {
	return Event{Kind: EventPhaseReport, Report: r}
}
