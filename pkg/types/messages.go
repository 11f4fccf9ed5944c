package types

import (
	"encoding/json"
	"fmt"
)

// Client -> Server
// Subscribe:   [5, "<kind>"]
// Unsubscribe: [6, "<kind>"]
//
// Server -> Client
// Event: [8, "<kind>", {"data": ..., "eventType": "Create" | "Update" | "Delete", "uri": "..."}]
//
// Kinds the session needs:
//   OnJsonApiEvent_entitlements_v1_token             data = {accessToken, token, subject, ...}
//   OnJsonApiEvent_riot-messaging-service_v1_message data = {payload: "<json string>", ...}
//     payload = {subject, loopState: "MENUS" | "PREGAME" | "INGAME", loopStateMetadata: "<match id>"}

type OpCode int

const (
	OpSubscribe   OpCode = 5
	OpUnsubscribe OpCode = 6
	OpEvent       OpCode = 8
)

type Kind string

const (
	KindEntitlementsToken Kind = "OnJsonApiEvent_entitlements_v1_token"
	KindMessagingService  Kind = "OnJsonApiEvent_riot-messaging-service_v1_message"
)

// Kinds lists every kind the event stream subscribes to, in subscribe order.
var Kinds = []Kind{KindEntitlementsToken, KindMessagingService}

func (k Kind) Known() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

type DataModifier string

const (
	ModifierCreate DataModifier = "Create"
	ModifierUpdate DataModifier = "Update"
	ModifierDelete DataModifier = "Delete"
)

func (m DataModifier) Known() bool {
	return m == ModifierCreate || m == ModifierUpdate || m == ModifierDelete
}

// EventData is the third element of an event frame.
type EventData struct {
	Data      json.RawMessage `json:"data"`
	EventType DataModifier    `json:"eventType"`
	URI       string          `json:"uri"`
}

func SubscribeFrame(k Kind) []byte {
	return commandFrame(OpSubscribe, k)
}

func commandFrame(op OpCode, k Kind) []byte {
	b, err := json.Marshal([]any{op, k})
	if err != nil {
		// op and k are plain int and string
		panic(fmt.Sprintf("marshal command frame: %v", err))
	}
	return b
}
