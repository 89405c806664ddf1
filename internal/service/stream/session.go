package stream

import (
	"context"
	"runtime"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

// Session owns the lifecycle of one request's response text.
type Session struct {
	ID      string
	request Request

	mu     sync.RWMutex
	status Status
	text   string
	errMsg string

	// advancing serializes Advance calls; observers only take mu.
	advancing sync.Mutex
	h         *handle
}

func newSession(req Request) *Session {
	s := &Session{
		ID:      uuid.NewString(),
		request: req.clone(),
		status:  StatusPending,
		h:       &handle{},
	}
	// Releases the open stream of a session that was dropped without Close.
	runtime.AddCleanup(s, func(h *handle) { h.release() }, s.h)
	return s
}

// Request returns the immutable exchange the session was created for.
func (s *Session) Request() Request {
	return s.request
}

// Snapshot returns the accumulated text and status without side effects.
func (s *Session) Snapshot() (string, Status) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text, s.status
}

// Err returns the failure description of a failed session.
func (s *Session) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// Update returns the current state in the form handed to sinks.
func (s *Session) Update() Update {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Update{
		SessionID: s.ID,
		Text:      s.text,
		Status:    s.status,
		Final:     s.status.Terminal(),
		Err:       s.errMsg,
	}
}

// Close releases the underlying stream. A session that has not finished yet is
// failed with ErrSessionClosed.
func (s *Session) Close() error {
	s.terminate(StatusFailed, ErrSessionClosed.Error())
	s.h.release()
	return nil
}

func (s *Session) setStreaming() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusPending {
		s.status = StatusStreaming
	}
}

func (s *Session) append(fragment string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return false
	}
	s.text += fragment
	return true
}

// terminate moves the session into a terminal status once; later calls are ignored.
func (s *Session) terminate(status Status, errMsg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return false
	}
	s.status = status
	if status == StatusFailed {
		s.errMsg = errMsg
		if s.text == "" {
			s.text = DisplayError(errMsg)
		}
	}
	return true
}

// handle is the releasable part of a session. It must not reference the Session so
// the cleanup registered in newSession can run.
type handle struct {
	mu     sync.Mutex
	reader *schema.StreamReader[*schema.Message]
	cancel context.CancelFunc
	closed bool
}

func (h *handle) attach(reader *schema.StreamReader[*schema.Message], cancel context.CancelFunc) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		reader.Close()
		cancel()
		return false
	}
	h.reader, h.cancel = reader, cancel
	h.mu.Unlock()
	return true
}

func (h *handle) current() *schema.StreamReader[*schema.Message] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reader
}

func (h *handle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *handle) release() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	reader, cancel := h.reader, h.cancel
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if reader != nil {
		reader.Close()
	}
}
