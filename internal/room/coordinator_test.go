package room

import (
	"strings"
	"testing"

	"coderoom/internal/event"
	"coderoom/internal/event/eventtest"
)

// createRoom makes a room for teacherConn and returns its code.
func createRoom(t *testing.T, c *Coordinator, rec *eventtest.Recorder, teacherConn string) string {
	t.Helper()
	before := len(rec.Named(event.RoomCreated))
	c.CreateRoom(teacherConn)
	created := rec.Named(event.RoomCreated)
	if len(created) != before+1 {
		t.Fatalf("room_created events = %d, want %d", len(created), before+1)
	}
	return created[before].Data.(map[string]string)["roomCode"]
}

func TestCreateRoomCodeFormat(t *testing.T) {
	rec := eventtest.NewRecorder()
	c := NewCoordinator(rec)

	for i := 0; i < 50; i++ {
		code := createRoom(t, c, rec, "teacher-1")
		if len(code) != 6 {
			t.Fatalf("code %q has length %d", code, len(code))
		}
		for _, ch := range code {
			if !strings.ContainsRune("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", ch) {
				t.Fatalf("code %q contains %q", code, ch)
			}
		}
	}
}

func TestCreateRoomJoinsTeacher(t *testing.T) {
	rec := eventtest.NewRecorder()
	c := NewCoordinator(rec)

	code := createRoom(t, c, rec, "teacher-1")
	if !rec.InGroup("teacher-1", code) {
		t.Error("teacher not joined to room group")
	}
}

func TestJoinRoom(t *testing.T) {
	rec := eventtest.NewRecorder()
	c := NewCoordinator(rec)
	code := createRoom(t, c, rec, "teacher-1")

	c.JoinRoom("student-conn", code, "Ada", "s-42")

	joined := rec.Named(event.StudentJoined)
	if len(joined) != 1 {
		t.Fatalf("student_joined events = %d, want 1", len(joined))
	}
	if got := joined[0].Data.(map[string]string)["studentName"]; got != "Ada" {
		t.Errorf("studentName = %q", got)
	}
	if joined[0].Group != code {
		t.Errorf("broadcast group = %q, want %q", joined[0].Group, code)
	}
	if !rec.InGroup("student-conn", code) {
		t.Error("student not joined to room group")
	}

	_, students, ok := c.lookup(code)
	if !ok {
		t.Fatal("room missing")
	}
	if students["s-42"] != "student-conn" {
		t.Errorf("studentSockets[s-42] = %q", students["s-42"])
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	rec := eventtest.NewRecorder()
	c := NewCoordinator(rec)

	c.JoinRoom("student-conn", "NOPE42", "Ada", "s-42")

	errs := rec.Named(event.SessionError)
	if len(errs) != 1 {
		t.Fatalf("session_error events = %d, want 1", len(errs))
	}
	if errs[0].ConnID != "student-conn" {
		t.Errorf("error receiver = %q", errs[0].ConnID)
	}
	if got := errs[0].Data.(event.ErrorData).Error; got != "Room NOPE42 not found" {
		t.Errorf("error = %q", got)
	}
	if len(rec.Named(event.StudentJoined)) != 0 {
		t.Error("student_joined must not be broadcast")
	}
}

func TestStudentRejoinOverwritesSocket(t *testing.T) {
	rec := eventtest.NewRecorder()
	c := NewCoordinator(rec)
	code := createRoom(t, c, rec, "teacher-1")

	c.JoinRoom("conn-old", code, "Ada", "s-42")
	c.JoinRoom("conn-new", code, "Ada", "s-42")

	_, students, _ := c.lookup(code)
	if students["s-42"] != "conn-new" {
		t.Errorf("studentSockets[s-42] = %q, want conn-new", students["s-42"])
	}
}

func TestSendTaskResetsSubmissions(t *testing.T) {
	rec := eventtest.NewRecorder()
	c := NewCoordinator(rec)
	code := createRoom(t, c, rec, "teacher-1")
	c.JoinRoom("student-conn", code, "Ada", "s-42")

	c.SubmitSolution("student-conn", code, "Ada", "print(1)", "python", "t1")
	c.SendTask("teacher-1", code, "second task", 15)
	c.SubmitSolution("student-conn", code, "Ada", "print(2)", "python", "t2")

	subs := rec.Named(event.SolutionSubmitted)
	if len(subs) != 2 {
		t.Fatalf("solution_submitted events = %d, want 2", len(subs))
	}

	tasks := rec.Named(event.NewTask)
	if len(tasks) != 1 {
		t.Fatalf("new_task events = %d, want 1", len(tasks))
	}
	data := tasks[0].Data.(map[string]any)
	if data["taskText"] != "second task" || data["timeLimit"] != 15 {
		t.Errorf("task payload = %v", data)
	}
}

func TestDuplicateSubmissionIgnored(t *testing.T) {
	rec := eventtest.NewRecorder()
	c := NewCoordinator(rec)
	code := createRoom(t, c, rec, "teacher-1")

	c.SubmitSolution("student-conn", code, "Ada", "print(1)", "python", "t1")
	c.SubmitSolution("student-conn", code, "Ada", "print(1) # again", "python", "t1")

	if got := len(rec.Named(event.SolutionSubmitted)); got != 1 {
		t.Fatalf("solution_submitted events = %d, want 1", got)
	}
	// The duplicate is dropped silently.
	if got := len(rec.Named(event.SessionError)); got != 0 {
		t.Errorf("session_error events = %d, want 0", got)
	}
}

func TestSubmitAfterExamEnded(t *testing.T) {
	rec := eventtest.NewRecorder()
	c := NewCoordinator(rec)
	code := createRoom(t, c, rec, "teacher-1")

	c.EndExam("teacher-1", code)
	c.SubmitSolution("student-conn", code, "Ada", "print(1)", "python", "t1")

	if got := len(rec.Named(event.ExamEnded)); got != 1 {
		t.Fatalf("exam_ended events = %d, want 1", got)
	}
	errs := rec.Named(event.SessionError)
	if len(errs) != 1 {
		t.Fatalf("session_error events = %d, want 1", len(errs))
	}
	if got := errs[0].Data.(event.ErrorData).Error; got != "Exam ended. No more submissions." {
		t.Errorf("error = %q", got)
	}
	if len(rec.Named(event.SolutionSubmitted)) != 0 {
		t.Error("submission must not be broadcast after end_exam")
	}
}

func TestSubmissionTrimsCode(t *testing.T) {
	rec := eventtest.NewRecorder()
	c := NewCoordinator(rec)
	code := createRoom(t, c, rec, "teacher-1")

	c.SubmitSolution("student-conn", code, "Ada", "print(1)\n\n  \n", "python", "t1")

	subs := rec.Named(event.SolutionSubmitted)
	if len(subs) != 1 {
		t.Fatal("no submission broadcast")
	}
	if got := subs[0].Data.(map[string]string)["code"]; got != "print(1)" {
		t.Errorf("code = %q", got)
	}
}

func TestCloseRoom(t *testing.T) {
	rec := eventtest.NewRecorder()
	c := NewCoordinator(rec)
	code := createRoom(t, c, rec, "teacher-1")

	c.CloseRoom("teacher-1", code)

	if got := len(rec.Named(event.RoomClosed)); got != 1 {
		t.Fatalf("room_closed events = %d, want 1", got)
	}

	// Room is gone: further operations report room-not-found.
	c.EndExam("teacher-1", code)
	if got := len(rec.Named(event.SessionError)); got != 1 {
		t.Errorf("session_error events = %d, want 1", got)
	}
}

func TestCloseRoomEmptiesGroup(t *testing.T) {
	rec := eventtest.NewRecorder()
	c := NewCoordinator(rec)
	code := createRoom(t, c, rec, "teacher-1")
	c.JoinRoom("student-conn", code, "Ada", "s-42")

	c.CloseRoom("teacher-1", code)

	// A later room reusing the code must not reach the old members.
	if rec.InGroup("teacher-1", code) {
		t.Error("teacher still in the closed room's group")
	}
	if rec.InGroup("student-conn", code) {
		t.Error("student still in the closed room's group")
	}
}

func TestReconnectTeacher(t *testing.T) {
	rec := eventtest.NewRecorder()
	c := NewCoordinator(rec)
	code := createRoom(t, c, rec, "teacher-old")

	c.ReconnectTeacher("teacher-new", code)

	teacher, _, ok := c.lookup(code)
	if !ok {
		t.Fatal("room missing")
	}
	if teacher != "teacher-new" {
		t.Errorf("teacher = %q, want teacher-new", teacher)
	}
}

func TestReconnectTeacherUnknownRoom(t *testing.T) {
	rec := eventtest.NewRecorder()
	c := NewCoordinator(rec)

	c.ReconnectTeacher("teacher-new", "NOROOM")

	errs := rec.Named(event.SessionError)
	if len(errs) != 1 {
		t.Fatalf("session_error events = %d, want 1", len(errs))
	}
	if got := errs[0].Data.(event.ErrorData).Error; got != "Room NOROOM not found" {
		t.Errorf("error = %q", got)
	}
	if rec.InGroup("teacher-new", "NOROOM") {
		t.Error("teacher must not be joined to a nonexistent room")
	}
}
