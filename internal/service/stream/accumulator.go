package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/cloudwego/eino/schema"
)

// Source opens a completion stream for a model and a role-tagged exchange. A chunk's
// Content is the next fragment; a non-empty ResponseMeta.FinishReason marks the end.
type Source interface {
	Stream(ctx context.Context, model string, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, model string, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error)

func (f SourceFunc) Stream(ctx context.Context, model string, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	return f(ctx, model, messages)
}

// Sink renders the current transcript entry. It is called once per update and must
// tolerate identical content.
type Sink interface {
	Render(u Update) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(u Update) error

func (f SinkFunc) Render(u Update) error {
	return f(u)
}

// Accumulator turns completion streams into monotonically growing transcript entries.
type Accumulator struct {
	source Source
}

// NewAccumulator creates an accumulator reading from source.
func NewAccumulator(source Source) *Accumulator {
	return &Accumulator{source: source}
}

// Begin validates req and creates a pending session. Nothing is sent to the source.
func (a *Accumulator) Begin(req Request) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return newSession(req), nil
}

// Snapshot is a pure read of the session state.
func (a *Accumulator) Snapshot(s *Session) (string, Status) {
	return s.Snapshot()
}

// Advance opens the stream on the first call and then pulls fragments until one
// carries text or the stream ends. Source failures are recorded on the session and
// never returned. ctx of the first call bounds the whole stream.
func (a *Accumulator) Advance(ctx context.Context, s *Session) Update {
	s.advancing.Lock()
	defer s.advancing.Unlock()

	if _, status := s.Snapshot(); status.Terminal() {
		return s.Update()
	}
	if s.h.isClosed() {
		return a.fail(s, ErrSessionClosed)
	}

	reader := s.h.current()
	if reader == nil {
		opened, err := a.open(ctx, s)
		if err != nil {
			return a.fail(s, err)
		}
		reader = opened
	}

	for {
		chunk, err := reader.Recv()
		if s.h.isClosed() {
			return a.fail(s, ErrSessionClosed)
		}
		if errors.Is(err, io.EOF) {
			return a.complete(s)
		}
		if err != nil {
			return a.fail(s, err)
		}
		if chunk == nil {
			continue
		}

		if chunk.Content != "" && !s.append(chunk.Content) {
			return s.Update()
		}
		if chunk.ResponseMeta != nil && chunk.ResponseMeta.FinishReason != "" {
			return a.complete(s)
		}
		if chunk.Content != "" {
			return s.Update()
		}
	}
}

// Drain advances s until it is terminal, rendering every update, and closes it on
// return. A sink error abandons the session.
func (a *Accumulator) Drain(ctx context.Context, s *Session, sink Sink) (Update, error) {
	defer s.Close()

	for {
		u := a.Advance(ctx, s)
		if sink != nil {
			if err := sink.Render(u); err != nil {
				return u, fmt.Errorf("render update: %w", err)
			}
		}
		if u.Final {
			return u, nil
		}
	}
}

// Run begins a session for req and drains it into sink.
func (a *Accumulator) Run(ctx context.Context, req Request, sink Sink) (Update, error) {
	s, err := a.Begin(req)
	if err != nil {
		return Update{}, err
	}
	return a.Drain(ctx, s, sink)
}

func (a *Accumulator) open(ctx context.Context, s *Session) (*schema.StreamReader[*schema.Message], error) {
	if a.source == nil {
		return nil, &CompletionError{Message: "no completion source configured"}
	}

	streamCtx, cancel := context.WithCancel(ctx)
	reader, err := a.source.Stream(streamCtx, s.request.Model, s.request.Messages)
	if err != nil {
		cancel()
		return nil, err
	}
	if reader == nil {
		cancel()
		return nil, &CompletionError{Message: "completion source returned no stream"}
	}
	if !s.h.attach(reader, cancel) {
		return nil, ErrSessionClosed
	}

	s.setStreaming()
	log.Printf("[stream] session=%s opened model=%s", s.ID, s.request.Model)
	return reader, nil
}

func (a *Accumulator) complete(s *Session) Update {
	if s.terminate(StatusComplete, "") {
		text, _ := s.Snapshot()
		log.Printf("[stream] session=%s complete length=%d", s.ID, len(text))
	}
	s.h.release()
	return s.Update()
}

func (a *Accumulator) fail(s *Session, err error) Update {
	msg := NewCompletionError(err).Message
	if s.terminate(StatusFailed, msg) {
		log.Printf("[stream] session=%s failed: %s", s.ID, msg)
	}
	s.h.release()
	return s.Update()
}
