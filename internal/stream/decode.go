package stream

import (
	"encoding/json"

	"github.com/kjzl/valorant-instalock/internal/engine"
	"github.com/kjzl/valorant-instalock/internal/types"
	ptypes "github.com/kjzl/valorant-instalock/pkg/types"
)

type credentialsData struct {
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
}

type messageData struct {
	Payload string `json:"payload"`
}

type statusPayload struct {
	Subject           string `json:"subject"`
	LoopState         string `json:"loopState"`
	LoopStateMetadata string `json:"loopStateMetadata"`
}

// Decode turns one text frame into an event. Frames that are not events of
// a known kind, or whose data matches neither the credentials nor the status
// shape, are reported as not ok. Credentials are tried first.
func Decode(frame []byte) (types.Event, bool) {
	var parts []json.RawMessage
	if err := json.Unmarshal(frame, &parts); err != nil || len(parts) != 3 {
		return types.Event{}, false
	}

	var op ptypes.OpCode
	if err := json.Unmarshal(parts[0], &op); err != nil || op != ptypes.OpEvent {
		return types.Event{}, false
	}
	var kind ptypes.Kind
	if err := json.Unmarshal(parts[1], &kind); err != nil || !kind.Known() {
		return types.Event{}, false
	}
	var data ptypes.EventData
	if err := json.Unmarshal(parts[2], &data); err != nil || !data.EventType.Known() {
		return types.Event{}, false
	}

	if ev, ok := decodeCredentials(data.Data); ok {
		return ev, true
	}
	return decodeStatus(data.Data)
}

func decodeCredentials(raw json.RawMessage) (types.Event, bool) {
	var c credentialsData
	if err := json.Unmarshal(raw, &c); err != nil || c.AccessToken == "" || c.Token == "" {
		return types.Event{}, false
	}
	return types.CredentialsRefreshed(types.Credentials{
		AccessToken:      c.AccessToken,
		EntitlementToken: c.Token,
	}), true
}

// the status payload is a JSON document embedded as a string
func decodeStatus(raw json.RawMessage) (types.Event, bool) {
	var m messageData
	if err := json.Unmarshal(raw, &m); err != nil || m.Payload == "" {
		return types.Event{}, false
	}
	var p statusPayload
	if err := json.Unmarshal([]byte(m.Payload), &p); err != nil {
		return types.Event{}, false
	}
	phase, err := engine.ParsePhase(p.LoopState)
	if err != nil {
		return types.Event{}, false
	}
	return types.PhaseReported(engine.Report{
		Subject: p.Subject,
		Phase:   phase,
		MatchID: p.LoopStateMetadata,
	}), true
}

// deduper drops an event equal to the last one it let through.
type deduper struct {
	last *types.Event
}

func (d *deduper) fresh(ev types.Event) bool {
	if d.last != nil && *d.last == ev {
		return false
	}
	d.last = &ev
	return true
}
