package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"coderoom/internal/config"
	"coderoom/internal/event"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	langPath := filepath.Join(t.TempDir(), "languages.yaml")
	content := "languages:\n  sh:\n    extension: sh\n    command: bash user_code.sh\n"
	if err := os.WriteFile(langPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		Session: config.SessionConfig{
			WorkspaceRoot:  t.TempDir(),
			PollIntervalMS: 20,
			LanguagesFile:  langPath,
		},
		Artifact: config.ArtifactConfig{MaxDimension: 800},
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.sessions.CloseAll()
	})
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendFrame(t *testing.T, ws *websocket.Conn, eventName string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.WriteJSON(event.Frame{Event: eventName, Data: raw}); err != nil {
		t.Fatal(err)
	}
}

// readUntil reads frames until one named want arrives, returning every frame
// seen along the way (want included, as the last element).
func readUntil(t *testing.T, ws *websocket.Conn, want string) []event.Frame {
	t.Helper()
	var frames []event.Frame
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var frame event.Frame
		if err := ws.ReadJSON(&frame); err != nil {
			t.Fatalf("waiting for %s: %v (got %d frames)", want, err, len(frames))
		}
		frames = append(frames, frame)
		if frame.Event == want {
			return frames
		}
	}
}

func TestIndexRoute(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Multi-language runner") {
		t.Errorf("index body = %q", body)
	}
}

func TestSessionOverWebSocket(t *testing.T) {
	ts := testServer(t)
	ws := dial(t, ts)

	sendFrame(t, ws, event.StartSession, map[string]string{
		"language": "sh",
		"code":     "echo over the wire",
	})

	frames := readUntil(t, ws, event.ProcessEnded)

	var sawStarted bool
	var output strings.Builder
	for _, f := range frames {
		switch f.Event {
		case event.SessionStarted:
			sawStarted = true
		case event.Output:
			var data event.OutputData
			if err := json.Unmarshal(f.Data, &data); err != nil {
				t.Fatal(err)
			}
			output.WriteString(data.Data)
		case event.SessionError:
			t.Fatalf("session_error: %s", f.Data)
		}
	}
	if !sawStarted {
		t.Error("no session_started frame")
	}
	if !strings.Contains(output.String(), "over the wire") {
		t.Errorf("output = %q", output.String())
	}
}

func TestInteractiveSessionOverWebSocket(t *testing.T) {
	ts := testServer(t)
	ws := dial(t, ts)

	sendFrame(t, ws, event.StartSession, map[string]string{
		"language": "sh",
		"code":     "read x\necho \"got $x\"",
	})
	readUntil(t, ws, event.SessionStarted)

	sendFrame(t, ws, event.SendInput, map[string]string{"line": "ping"})

	frames := readUntil(t, ws, event.ProcessEnded)
	var output strings.Builder
	for _, f := range frames {
		if f.Event == event.Output {
			var data event.OutputData
			json.Unmarshal(f.Data, &data)
			output.WriteString(data.Data)
		}
	}
	if !strings.Contains(output.String(), "got ping") {
		t.Errorf("output = %q", output.String())
	}
}

func TestRoomFlowOverWebSocket(t *testing.T) {
	ts := testServer(t)
	teacher := dial(t, ts)
	student := dial(t, ts)

	sendFrame(t, teacher, event.CreateRoom, struct{}{})
	frames := readUntil(t, teacher, event.RoomCreated)

	var created struct {
		RoomCode string `json:"roomCode"`
	}
	if err := json.Unmarshal(frames[len(frames)-1].Data, &created); err != nil {
		t.Fatal(err)
	}
	if len(created.RoomCode) != 6 {
		t.Fatalf("room code = %q", created.RoomCode)
	}

	sendFrame(t, student, event.JoinRoom, map[string]string{
		"roomCode":  created.RoomCode,
		"name":      "Ada",
		"studentId": "s-42",
	})

	// Both room members receive the join broadcast.
	readUntil(t, student, event.StudentJoined)
	joined := readUntil(t, teacher, event.StudentJoined)

	var payload struct {
		StudentName string `json:"studentName"`
	}
	if err := json.Unmarshal(joined[len(joined)-1].Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.StudentName != "Ada" {
		t.Errorf("studentName = %q", payload.StudentName)
	}
}

func TestUnknownRoomOverWebSocket(t *testing.T) {
	ts := testServer(t)
	ws := dial(t, ts)

	sendFrame(t, ws, event.JoinRoom, map[string]string{"roomCode": "ZZZZZZ"})

	frames := readUntil(t, ws, event.SessionError)
	var data event.ErrorData
	if err := json.Unmarshal(frames[len(frames)-1].Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Error != "Room ZZZZZZ not found" {
		t.Errorf("error = %q", data.Error)
	}
}
