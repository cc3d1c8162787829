package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionFocus    Action = "focus"
	ActionPing     Action = "ping"
)

// FocusState reports whether the attempt surface holds foreground focus.
type FocusState string

const (
	FocusLost     FocusState = "lost"
	FocusRegained FocusState = "regained"
)

// RequestPayload is the single client → server message shape; which
// fields matter depends on Action.
type RequestPayload struct {
	Action Action `json:"action"`
	// Autosave fields.
	QID    string `json:"q_id,omitempty"`
	Answer string `json:"ans,omitempty"`
	// Focus fields.
	Focus FocusState `json:"focus,omitempty"`
	// Detail carries the client's raw integrity report (visibility
	// change, devtools, tab switch) as a JSON string.
	Detail string `json:"detail,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSuccess Event = "success"
	EventSealed  Event = "sealed"
	EventGraded  Event = "graded"
	EventWarning Event = "warning"
	EventPong    Event = "pong"
)

type SuccessResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

// SealedResponse acknowledges the single authoritative seal of the
// attempt. It is sent only after the seal has been durably recorded.
type SealedResponse struct {
	Event       Event  `json:"event"`
	Reason      string `json:"reason"`
	SubmittedAt string `json:"submitted_at"`
}

type GradedResponse struct {
	Event      Event   `json:"event"`
	Status     string  `json:"status"`
	TotalScore float64 `json:"total_score"`
	Percentage int     `json:"percentage"`
}

// WarningResponse tells the client a grace timer is running (e.g. focus
// lost); regaining focus inside the window cancels the seal.
type WarningResponse struct {
	Event        Event  `json:"event"`
	Warning      string `json:"warning"`
	GraceSeconds int    `json:"grace_seconds"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
