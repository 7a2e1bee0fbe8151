// Package artifact detects image files a finished process left in its
// workspace and converts them into transmittable payloads.
package artifact

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"coderoom/internal/event"
)

var patterns = []string{"*.png", "*.jpg", "*.jpeg"}

// ImageData is the payload of a plot_image event.
type ImageData struct {
	Filename    string `json:"filename"`
	ImageBase64 string `json:"image_base64"`
}

// Scanner finds new images in a workspace and emits them to the owning
// connection. Per-file failures are reported and skipped; a scan never
// fails as a whole.
type Scanner struct {
	Emitter event.Emitter
	// MaxDimension caps either image dimension; larger images are
	// downscaled preserving aspect ratio before delivery.
	MaxDimension int
}

// Scan emits a plot_image event for every matching file in dir that is not
// yet in sent, adding delivered paths to sent. sent belongs to the session:
// it only ever grows, so a rescan delivers nothing new.
func (s *Scanner) Scan(connID, dir string, sent map[string]bool) {
	if dir == "" {
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return
	}

	for _, pattern := range patterns {
		paths, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		for _, path := range paths {
			if sent[path] {
				continue
			}
			s.deliver(connID, path, sent)
		}
	}
}

func (s *Scanner) deliver(connID, path string, sent map[string]bool) {
	if _, err := os.Stat(path); err != nil {
		s.Emitter.Emit(connID, event.SessionError,
			event.ErrorData{Error: fmt.Sprintf("Plot file not found: %s", path)})
		return
	}

	data, err := encodePNG(path, s.MaxDimension)
	if err != nil {
		s.Emitter.Emit(connID, event.SessionError,
			event.ErrorData{Error: fmt.Sprintf("Could not handle plot file %s: %v", path, err)})
		return
	}

	s.Emitter.Emit(connID, event.PlotImage, ImageData{
		Filename:    filepath.Base(path),
		ImageBase64: base64.StdEncoding.EncodeToString(data),
	})
	sent[path] = true
}
