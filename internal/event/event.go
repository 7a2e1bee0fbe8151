// Package event defines the boundary between coderoom's core logic and the
// connection transport. Session and room code emit named events through an
// Emitter without knowing how (or whether) they reach a client, which keeps
// the core testable with in-memory recorders.
package event

import "encoding/json"

// Inbound event names.
const (
	StartSession      = "start_session"
	SendInput         = "send_input"
	DisconnectSession = "disconnect_session"
	CreateRoom        = "create_room"
	SendTask          = "send_task"
	EndExam           = "end_exam"
	CloseRoom         = "close_room"
	JoinRoom          = "join_room"
	SubmitSolution    = "submit_solution"
	ReconnectTeacher  = "reconnect_teacher"
	ScreenShareOffer  = "screen_share_offer"
	ScreenShareAnswer = "screen_share_answer"
	IceCandidate      = "ice_candidate"
)

// Outbound event names.
const (
	SessionStarted    = "session_started"
	SessionError      = "session_error"
	Output            = "python_output" // raw output chunk, any language (historical name)
	ProcessEnded      = "process_ended"
	PlotImage         = "plot_image"
	RoomCreated       = "room_created"
	NewTask           = "new_task"
	ExamEnded         = "exam_ended"
	RoomClosed        = "room_closed"
	StudentJoined     = "student_joined"
	SolutionSubmitted = "solution_submitted"
)

// Frame is the wire representation of one event: a single JSON object per
// WebSocket text message, in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Emitter delivers named events to connections. Emit targets a single
// connection; Broadcast targets every connection joined to a group. Both are
// fire-and-forget: delivery failures are the transport's problem, never the
// caller's.
type Emitter interface {
	Emit(connID, event string, data any)
	Broadcast(group, event string, data any)
	Join(connID, group string)
	Leave(connID, group string)
}

// ErrorData is the payload of a session_error event.
type ErrorData struct {
	Error string `json:"error"`
}

// OutputData is the payload of a python_output event.
type OutputData struct {
	Data string `json:"data"`
}
