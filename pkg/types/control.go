package types

// Control feed (GET /ws on the control surface)
//
// Client -> Server: {"type": "QuitPregame" | "QuitMatch" | "Pause" | "Resume"}
// Server -> Client:
//   {"type": "Status",   "status": {...}}         on connect and on every change
//   {"type": "Accepted", "command": "<type>"}     command queued or applied
//   {"type": "Error",    "error": "<message>"}

type ClientMessage struct {
	Type string `json:"type"`
}

type ServerMessage struct {
	Type    string  `json:"type"`
	Status  *Status `json:"status,omitempty"`
	Command string  `json:"command,omitempty"`
	Error   string  `json:"error,omitempty"`
}

const (
	MsgQuitPregame = "QuitPregame"
	MsgQuitMatch   = "QuitMatch"
	MsgPause       = "Pause"
	MsgResume      = "Resume"

	MsgStatus   = "Status"
	MsgAccepted = "Accepted"
	MsgError    = "Error"
)
