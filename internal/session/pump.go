package session

import (
	"errors"
	"io"
	"os"
	"syscall"
	"time"
	"unicode/utf8"

	"coderoom/internal/event"
)

// chunkBuffer reassembles UTF-8 sequences split across read boundaries. A
// trailing incomplete sequence is held back and prepended to the next chunk,
// so the emitted chunks concatenate to exactly the bytes the process wrote.
// The held tail is at most utf8.UTFMax-1 bytes; byte runs that are not valid
// UTF-8 at all pass through unchanged.
type chunkBuffer struct {
	tail []byte
}

// next returns the emittable portion of the held-back tail plus p.
func (b *chunkBuffer) next(p []byte) string {
	data := append(b.tail, p...)
	cut := len(data)
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				cut = i
			}
			break
		}
	}
	b.tail = append([]byte(nil), data[cut:]...)
	return string(data[:cut])
}

// flush returns whatever is still held back. Called at end-of-stream: a
// sequence the process never finished is forwarded as-is.
func (b *chunkBuffer) flush() string {
	s := string(b.tail)
	b.tail = nil
	return s
}

// pump drains the session's pseudo-terminal and forwards every chunk to the
// owning connection as it arrives — interactive prompts without trailing
// newlines must appear promptly. Read boundaries are arbitrary, so a
// chunkBuffer keeps multi-byte runes intact across emits. Each read is
// bounded by the poll interval so the closing signal is observed at least
// once per cycle. When the process exits the pump scans for image artifacts,
// tells the client the process ended, and tears the session down. If teardown
// was already triggered elsewhere, all of that is skipped: the client already
// knows the session is gone.
func (r *Registry) pump(s *Session) {
	buf := make([]byte, 4096)
	var out chunkBuffer
	var streamErr error

	for {
		if s.isClosing() {
			break
		}

		s.ptmx.SetReadDeadline(time.Now().Add(r.opts.PollInterval))
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			if chunk := out.next(buf[:n]); chunk != "" {
				r.emitter.Emit(s.connID, event.Output, event.OutputData{Data: chunk})
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			continue
		}
		if endOfStream(err) {
			break
		}
		streamErr = err
		break
	}

	if s.isClosing() {
		s.teardown()
		return
	}

	if streamErr != nil {
		s.setState(Errored)
		r.emitter.Emit(s.connID, event.SessionError, event.ErrorData{Error: streamErr.Error()})
	} else {
		s.setState(Ended)
	}

	r.drain(s, buf, &out)
	if rest := out.flush(); rest != "" {
		r.emitter.Emit(s.connID, event.Output, event.OutputData{Data: rest})
	}
	r.scanner.Scan(s.connID, s.workDir, s.sent)
	r.emitter.Emit(s.connID, event.ProcessEnded, struct{}{})
	s.teardown()
}

// drain forwards any output still buffered in the terminal after the main
// loop saw end-of-stream.
func (r *Registry) drain(s *Session, buf []byte, out *chunkBuffer) {
	for {
		s.ptmx.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			if chunk := out.next(buf[:n]); chunk != "" {
				r.emitter.Emit(s.connID, event.Output, event.OutputData{Data: chunk})
			}
		}
		if err != nil {
			return
		}
	}
}

// endOfStream reports whether a pty read error means the child is gone. On
// Linux the master side returns EIO once the slave side has no more writers;
// a closed file means teardown already ran.
func endOfStream(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.EIO) ||
		errors.Is(err, os.ErrClosed)
}
