package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"coderoom/internal/event"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // mirrors the permissive CORS of the service this replaces
	},
}

// inbound is the union of all inbound event payload fields.
type inbound struct {
	Code      string          `json:"code"`
	Language  string          `json:"language"`
	Line      string          `json:"line"`
	RoomCode  string          `json:"roomCode"`
	TaskText  string          `json:"taskText"`
	TimeLimit int             `json:"timeLimit"`
	Name      string          `json:"name"`
	StudentID string          `json:"studentId"`
	TaskID    string          `json:"taskId"`
	To        string          `json:"to"`
	Offer     json.RawMessage `json:"offer"`
	Answer    json.RawMessage `json:"answer"`
	Candidate json.RawMessage `json:"candidate"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer ws.Close()

	connID := uuid.NewString()
	s.hub.add(connID, ws)
	defer func() {
		// The connection is gone before the session is: removing it first
		// means teardown's farewell events are silently dropped instead of
		// written to a dead socket.
		s.hub.remove(connID)
		s.sessions.Disconnect(connID)
	}()

	for {
		var frame event.Frame
		if err := ws.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}
		s.dispatch(connID, frame)
	}
}

// dispatch routes one inbound frame to the session registry, room
// coordinator, or signaling relay. Events from a single connection are
// handled in order; only events from different connections run concurrently.
func (s *Server) dispatch(connID string, frame event.Frame) {
	var p inbound
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			s.hub.Emit(connID, event.SessionError, event.ErrorData{Error: "malformed payload"})
			return
		}
	}

	switch frame.Event {
	case event.StartSession:
		s.sessions.Start(connID, p.Language, p.Code)
	case event.SendInput:
		s.sessions.SendInput(connID, p.Line)
	case event.DisconnectSession:
		s.sessions.Disconnect(connID)
	case event.CreateRoom:
		s.rooms.CreateRoom(connID)
	case event.SendTask:
		s.rooms.SendTask(connID, p.RoomCode, p.TaskText, p.TimeLimit)
	case event.EndExam:
		s.rooms.EndExam(connID, p.RoomCode)
	case event.CloseRoom:
		s.rooms.CloseRoom(connID, p.RoomCode)
	case event.JoinRoom:
		s.rooms.JoinRoom(connID, p.RoomCode, p.Name, p.StudentID)
	case event.SubmitSolution:
		s.rooms.SubmitSolution(connID, p.RoomCode, p.Name, p.Code, p.Language, p.TaskID)
	case event.ReconnectTeacher:
		s.rooms.ReconnectTeacher(connID, p.RoomCode)
	case event.ScreenShareOffer:
		s.relay.ForwardOffer(connID, p.RoomCode, p.StudentID, p.Offer)
	case event.ScreenShareAnswer:
		s.relay.ForwardAnswer(connID, p.RoomCode, p.StudentID, p.Answer)
	case event.IceCandidate:
		s.relay.ForwardIceCandidate(connID, p.RoomCode, p.To, p.StudentID, p.Candidate)
	default:
		log.Printf("unknown event %q from %s", frame.Event, connID)
	}
}
