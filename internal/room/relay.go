package room

import (
	"fmt"

	"coderoom/internal/event"
)

// Relay forwards WebRTC signaling payloads between a room's teacher and a
// specific student. It keeps no state of its own; destinations come from
// the coordinator's room lookups. Missing rooms and missing destination
// sockets are reported to the sender only, never broadcast.
type Relay struct {
	coord   *Coordinator
	emitter event.Emitter
}

func NewRelay(coord *Coordinator, emitter event.Emitter) *Relay {
	return &Relay{coord: coord, emitter: emitter}
}

// ForwardOffer sends a student's screen-share offer to the room's teacher,
// tagged with the student identifier so the teacher can answer.
func (r *Relay) ForwardOffer(connID, roomCode, studentID string, offer any) {
	teacher, _, ok := r.coord.lookup(roomCode)
	if !ok {
		r.notFound(connID, roomCode)
		return
	}
	if teacher == "" {
		r.noSocket(connID, "teacher", roomCode)
		return
	}
	r.emitter.Emit(teacher, event.ScreenShareOffer, map[string]any{
		"offer":     offer,
		"studentId": studentID,
	})
}

// ForwardAnswer sends the teacher's answer back to one student.
func (r *Relay) ForwardAnswer(connID, roomCode, studentID string, answer any) {
	_, students, ok := r.coord.lookup(roomCode)
	if !ok {
		r.notFound(connID, roomCode)
		return
	}
	dest := students[studentID]
	if dest == "" {
		r.noSocket(connID, studentID, roomCode)
		return
	}
	r.emitter.Emit(dest, event.ScreenShareAnswer, map[string]any{
		"answer": answer,
	})
}

// ForwardIceCandidate routes an ICE candidate to whichever side `to` names,
// tagging the payload with the opposite role as its origin.
func (r *Relay) ForwardIceCandidate(connID, roomCode, to, studentID string, candidate any) {
	teacher, students, ok := r.coord.lookup(roomCode)
	if !ok {
		r.notFound(connID, roomCode)
		return
	}

	switch to {
	case "teacher":
		if teacher == "" {
			r.noSocket(connID, "teacher", roomCode)
			return
		}
		r.emitter.Emit(teacher, event.IceCandidate, map[string]any{
			"candidate": candidate,
			"from":      "student",
			"studentId": studentID,
		})
	case "student":
		dest := students[studentID]
		if dest == "" {
			r.noSocket(connID, studentID, roomCode)
			return
		}
		r.emitter.Emit(dest, event.IceCandidate, map[string]any{
			"candidate": candidate,
			"from":      "teacher",
		})
	default:
		r.emitter.Emit(connID, event.SessionError,
			event.ErrorData{Error: fmt.Sprintf("Unknown ICE destination: %s", to)})
	}
}

func (r *Relay) notFound(connID, roomCode string) {
	r.emitter.Emit(connID, event.SessionError,
		event.ErrorData{Error: fmt.Sprintf("Room %s not found", roomCode)})
}

func (r *Relay) noSocket(connID, who, roomCode string) {
	r.emitter.Emit(connID, event.SessionError,
		event.ErrorData{Error: fmt.Sprintf("No socket for %s in room %s", who, roomCode)})
}
