package httpd

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"weatherstation-go/errcode"
	"weatherstation-go/types"
)

// Updater opens the inactive upgrade storage slot — never the currently
// running image.
type Updater interface {
	Begin() (Slot, error)
}

// Slot is one exclusively-owned write cursor into upgrade storage.
type Slot interface {
	io.Writer
	// Commit marks the slot as the next boot target.
	Commit() error
	// Abort discards partial data. Safe to call after a failed Commit.
	Abort()
}

const updateChunkSize = 4096

// otaUpdate drives the update state machine:
// Idle -> Receiving -> Validating -> Committed | Failed.
// Exactly one session may exist; a concurrent upload is rejected with 409
// because the write cursor is not safely shareable.
func (s *Server) otaUpdate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.receiving || s.restarted {
		s.mu.Unlock()
		http.Error(w, errcode.Busy.Error(), http.StatusConflict)
		return
	}
	s.receiving = true
	s.status = types.UpdatePending // a new upload resets the status
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.receiving = false
		s.mu.Unlock()
	}()

	slot, err := s.cfg.Updater.Begin()
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "open slot", err)
		return
	}

	received, head, err := s.receive(w, r.Body, slot)
	if err != nil {
		slot.Abort()
		code := http.StatusInternalServerError
		if errors.Is(err, errTooLarge) || errors.Is(err, errStalled) {
			code = http.StatusBadRequest
		}
		s.fail(w, code, "receive", err)
		return
	}

	// Validating: platform header plus size sanity.
	if received < int64(len(s.cfg.Magic)) || !bytes.HasPrefix(head, s.cfg.Magic) {
		slot.Abort()
		s.fail(w, http.StatusBadRequest, "validate", errcode.InvalidImage)
		return
	}
	if err := slot.Commit(); err != nil {
		slot.Abort()
		s.fail(w, http.StatusInternalServerError, "commit", err)
		return
	}

	s.mu.Lock()
	s.status = types.UpdateSuccessful
	already := s.restarted
	s.restarted = true
	s.mu.Unlock()

	if !already {
		s.log.Info("httpd: update committed, restarting",
			slog.Int64("bytes", received),
			slog.Duration("delay", s.cfg.RestartDelay))
		// Give the response time to flush before the device goes away.
		time.AfterFunc(s.cfg.RestartDelay, s.cfg.Restart)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("update successful\n"))
}

var (
	errTooLarge = errors.New("httpd: image exceeds size bound")
	errStalled  = errors.New("httpd: upload stalled")
)

// receive streams body chunks to the slot's write cursor, keeping the first
// chunk for header validation. Progress is bounded per chunk; a stalled body
// or an oversize image aborts the session.
func (s *Server) receive(w http.ResponseWriter, body io.Reader, slot Slot) (int64, []byte, error) {
	rc := http.NewResponseController(w)
	buf := make([]byte, updateChunkSize)
	var (
		total int64
		head  []byte
	)
	for {
		// Best effort: not every transport supports read deadlines.
		if err := rc.SetReadDeadline(time.Now().Add(s.cfg.StallTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			s.log.Debug("httpd: no read deadline support", slog.Any("error", err))
		}
		n, rerr := body.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > s.cfg.MaxImageSize {
				return total, head, errTooLarge
			}
			// Keep accumulating until the header prefix is complete; a
			// short first read must not defeat validation.
			if len(head) < len(s.cfg.Magic) {
				head = append(head, buf[:n]...)
			}
			if _, werr := slot.Write(buf[:n]); werr != nil {
				return total, head, &errcode.E{C: errcode.StorageFull, Op: "write", Err: werr}
			}
		}
		switch {
		case rerr == io.EOF:
			return total, head, nil
		case errors.Is(rerr, io.ErrUnexpectedEOF):
			return total, head, &errcode.E{C: errcode.ProtocolViolation, Op: "read", Err: rerr}
		case rerr != nil:
			if isTimeout(rerr) {
				return total, head, errStalled
			}
			return total, head, rerr
		}
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// fail transitions the session to Failed. The device stays on its current
// firmware and resumes normal operation.
func (s *Server) fail(w http.ResponseWriter, code int, op string, err error) {
	s.mu.Lock()
	s.status = types.UpdateFailed
	s.mu.Unlock()
	s.log.Error("httpd: update failed", slog.String("op", op), slog.Any("error", err))
	http.Error(w, err.Error(), code)
}
