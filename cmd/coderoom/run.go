package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"coderoom/internal/event"
)

var (
	languageFlag string
	serverFlag   string
)

// extLanguages infers a language from the source file extension when
// --language is not given.
var extLanguages = map[string]string{
	".py":   "python",
	".c":    "c",
	".cpp":  "cpp",
	".java": "java",
	".js":   "js",
	".php":  "php",
	".sql":  "sql",
}

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run a source file against a coderoom server",
	Long: `Run a source file in an interactive session on a coderoom server.

Program output streams to stdout as it is produced. Lines you type are sent
to the program's stdin. Plot images the program produces are saved to the
current directory when it exits.

Examples:
  coderoom run fib.py
  coderoom run Main.java --server ws://example.org:5000`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&languageFlag, "language", "", "Language (inferred from the file extension if omitted)")
	runCmd.Flags().StringVar(&serverFlag, "server", "ws://localhost:5000", "Server address")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	path := args[0]
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	language := languageFlag
	if language == "" {
		language = extLanguages[strings.ToLower(filepath.Ext(path))]
		if language == "" {
			return fmt.Errorf("cannot infer language from %q, use --language", path)
		}
	}

	ws, _, err := websocket.DefaultDialer.Dial(strings.TrimSuffix(serverFlag, "/")+"/ws", nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", serverFlag, err)
	}
	defer ws.Close()

	if err := sendEvent(ws, event.StartSession, map[string]string{
		"language": language,
		"code":     string(source),
	}); err != nil {
		return err
	}

	rl, err := readline.New("")
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	done := make(chan error, 1)
	go func() {
		done <- receive(ws)
		rl.Close() // unblocks the input loop below
	}()

	var writeMu sync.Mutex
	send := func(eventName string, data any) {
		writeMu.Lock()
		defer writeMu.Unlock()
		sendEvent(ws, eventName, data)
	}

	go func() {
		for {
			line, err := rl.Readline()
			if err != nil {
				if err == readline.ErrInterrupt {
					send(event.DisconnectSession, struct{}{})
				}
				return
			}
			send(event.SendInput, map[string]string{"line": line})
		}
	}()

	return <-done
}

// receive prints session events until the process ends or the connection
// drops.
func receive(ws *websocket.Conn) error {
	for {
		var frame event.Frame
		if err := ws.ReadJSON(&frame); err != nil {
			return fmt.Errorf("connection lost: %w", err)
		}

		switch frame.Event {
		case event.Output:
			var data event.OutputData
			if err := json.Unmarshal(frame.Data, &data); err == nil {
				fmt.Print(data.Data)
			}
		case event.SessionError:
			var data event.ErrorData
			if err := json.Unmarshal(frame.Data, &data); err == nil {
				fmt.Fprintf(os.Stderr, "error: %s\n", data.Error)
			}
		case event.PlotImage:
			savePlot(frame.Data)
		case event.ProcessEnded:
			return nil
		}
	}
}

// savePlot writes a received plot image next to the user.
func savePlot(raw json.RawMessage) {
	var data struct {
		Filename    string `json:"filename"`
		ImageBase64 string `json:"image_base64"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.Filename == "" {
		return
	}
	img, err := base64.StdEncoding.DecodeString(data.ImageBase64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: decoding %s: %v\n", data.Filename, err)
		return
	}
	name := filepath.Base(data.Filename)
	if err := os.WriteFile(name, img, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error: saving %s: %v\n", name, err)
		return
	}
	fmt.Fprintf(os.Stderr, "saved %s\n", name)
}

func sendEvent(ws *websocket.Conn, eventName string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return ws.WriteJSON(event.Frame{Event: eventName, Data: raw})
}
