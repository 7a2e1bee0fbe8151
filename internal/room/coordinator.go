// Package room implements classroom exam rooms: roster tracking, task
// broadcast, submission gating, and WebRTC signaling relay between a
// teacher and individual students.
package room

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"

	"coderoom/internal/event"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

// Room is one classroom's state, keyed by its 6-character code.
type Room struct {
	Code         string
	TeacherConn  string
	Participants map[string]bool
	// StudentSockets maps a stable student identifier to the student's
	// current connection. Overwritten on rejoin, so it survives reconnects.
	StudentSockets map[string]string
	TaskText       string
	TimeLimit      int
	ExamEnded      bool
	// Submitted tracks connections that already submitted for the current
	// task. Cleared when a new task is sent.
	Submitted map[string]bool
}

// Coordinator is the process-wide registry of open rooms. All operations
// validate the room exists and report failures to the requesting connection
// only; nothing here is fatal.
type Coordinator struct {
	emitter event.Emitter

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewCoordinator(emitter event.Emitter) *Coordinator {
	return &Coordinator{
		emitter: emitter,
		rooms:   make(map[string]*Room),
	}
}

// CreateRoom opens a room with connID as teacher and returns its code to
// the creator. Codes are regenerated until unused among open rooms.
func (c *Coordinator) CreateRoom(connID string) {
	c.mu.Lock()
	code := generateCode()
	for c.rooms[code] != nil {
		code = generateCode()
	}
	c.rooms[code] = &Room{
		Code:           code,
		TeacherConn:    connID,
		Participants:   make(map[string]bool),
		StudentSockets: make(map[string]string),
		Submitted:      make(map[string]bool),
	}
	c.mu.Unlock()

	c.emitter.Join(connID, code)
	c.emitter.Emit(connID, event.RoomCreated, map[string]string{"roomCode": code})
}

// SendTask broadcasts a new assignment to the room, reopening submissions.
func (c *Coordinator) SendTask(connID, roomCode, taskText string, timeLimit int) {
	c.mu.Lock()
	room, ok := c.rooms[roomCode]
	if ok {
		room.TaskText = taskText
		room.TimeLimit = timeLimit
		room.ExamEnded = false
		room.Submitted = make(map[string]bool)
	}
	c.mu.Unlock()

	if !ok {
		c.roomNotFound(connID, roomCode)
		return
	}
	c.emitter.Broadcast(roomCode, event.NewTask, map[string]any{
		"taskText":  taskText,
		"timeLimit": timeLimit,
	})
}

// EndExam closes submissions for the room's current task.
func (c *Coordinator) EndExam(connID, roomCode string) {
	c.mu.Lock()
	room, ok := c.rooms[roomCode]
	if ok {
		room.ExamEnded = true
	}
	c.mu.Unlock()

	if !ok {
		c.roomNotFound(connID, roomCode)
		return
	}
	c.emitter.Broadcast(roomCode, event.ExamEnded, struct{}{})
}

// CloseRoom tells every member the room is gone, then deletes it and empties
// its broadcast group, so a later room reusing the code cannot reach stale
// members.
func (c *Coordinator) CloseRoom(connID, roomCode string) {
	c.mu.Lock()
	room, ok := c.rooms[roomCode]
	delete(c.rooms, roomCode)
	var members []string
	if ok {
		members = make([]string, 0, len(room.Participants)+1)
		members = append(members, room.TeacherConn)
		for id := range room.Participants {
			members = append(members, id)
		}
	}
	c.mu.Unlock()

	if !ok {
		c.roomNotFound(connID, roomCode)
		return
	}
	c.emitter.Broadcast(roomCode, event.RoomClosed, struct{}{})
	for _, id := range members {
		c.emitter.Leave(id, roomCode)
	}
}

// JoinRoom adds a connection to the room's roster and broadcast group. A
// student identifier, when present, maps the student to this connection,
// replacing any previous one.
func (c *Coordinator) JoinRoom(connID, roomCode, studentName, studentID string) {
	if studentName == "" {
		studentName = "Unknown"
	}

	c.mu.Lock()
	room, ok := c.rooms[roomCode]
	if ok {
		room.Participants[connID] = true
		if studentID != "" {
			room.StudentSockets[studentID] = connID
		}
	}
	c.mu.Unlock()

	if !ok {
		c.roomNotFound(connID, roomCode)
		return
	}
	c.emitter.Join(connID, roomCode)
	c.emitter.Broadcast(roomCode, event.StudentJoined, map[string]string{"studentName": studentName})
}

// SubmitSolution records and broadcasts a student's submission. Submissions
// after end_exam are rejected; a repeat submission from the same connection
// in the same task cycle is silently ignored.
func (c *Coordinator) SubmitSolution(connID, roomCode, studentName, code, language, taskID string) {
	if studentName == "" {
		studentName = "Unknown"
	}
	code = strings.TrimRight(code, " \t\r\n")

	c.mu.Lock()
	room, ok := c.rooms[roomCode]
	var ended, duplicate bool
	if ok {
		ended = room.ExamEnded
		if !ended {
			duplicate = room.Submitted[connID]
			if !duplicate {
				room.Submitted[connID] = true
			}
		}
	}
	c.mu.Unlock()

	if !ok {
		c.roomNotFound(connID, roomCode)
		return
	}
	if ended {
		c.emitter.Emit(connID, event.SessionError,
			event.ErrorData{Error: "Exam ended. No more submissions."})
		return
	}
	if duplicate {
		return
	}

	c.emitter.Broadcast(roomCode, event.SolutionSubmitted, map[string]string{
		"studentName": studentName,
		"code":        code,
		"language":    language,
		"taskId":      taskID,
	})
}

// ReconnectTeacher points the room at the teacher's new connection.
func (c *Coordinator) ReconnectTeacher(connID, roomCode string) {
	c.mu.Lock()
	room, ok := c.rooms[roomCode]
	if ok {
		room.TeacherConn = connID
	}
	c.mu.Unlock()

	if !ok {
		c.roomNotFound(connID, roomCode)
		return
	}
	c.emitter.Join(connID, roomCode)
}

// lookup returns a snapshot of routing fields for a room, for the relay.
func (c *Coordinator) lookup(roomCode string) (teacherConn string, students map[string]string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	room, ok := c.rooms[roomCode]
	if !ok {
		return "", nil, false
	}
	students = make(map[string]string, len(room.StudentSockets))
	for id, conn := range room.StudentSockets {
		students[id] = conn
	}
	return room.TeacherConn, students, true
}

func (c *Coordinator) roomNotFound(connID, roomCode string) {
	c.emitter.Emit(connID, event.SessionError,
		event.ErrorData{Error: fmt.Sprintf("Room %s not found", roomCode)})
}

// generateCode returns 6 characters drawn from uppercase letters and digits.
func generateCode() string {
	b := make([]byte, codeLength)
	rand.Read(b)
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b)
}
