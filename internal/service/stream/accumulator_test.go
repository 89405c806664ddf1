package stream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
)

type scriptedSource struct {
	calls   atomic.Int32
	chunks  []*schema.Message
	err     error
	openErr error
}

func (s *scriptedSource) Stream(_ context.Context, _ string, _ []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	s.calls.Add(1)
	if s.openErr != nil {
		return nil, s.openErr
	}

	sr, sw := schema.Pipe[*schema.Message](len(s.chunks) + 1)
	go func() {
		defer sw.Close()
		for _, chunk := range s.chunks {
			if closed := sw.Send(chunk, nil); closed {
				return
			}
		}
		if s.err != nil {
			sw.Send(nil, s.err)
		}
	}()
	return sr, nil
}

func fragments(texts ...string) []*schema.Message {
	out := make([]*schema.Message, 0, len(texts))
	for _, text := range texts {
		out = append(out, &schema.Message{Role: schema.Assistant, Content: text})
	}
	return out
}

func begin(t *testing.T, acc *Accumulator, user string) *Session {
	t.Helper()
	s, err := acc.Begin(NewRequest("gemini/gemini-2.0-flash", "prompt1 text", user))
	if err != nil {
		t.Fatalf("Begin err: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAdvanceHappyPath(t *testing.T) {
	src := &scriptedSource{chunks: fragments("## Most likely", "\n- ACS", "\n- PE")}
	acc := NewAccumulator(src)
	s := begin(t, acc, "65F with chest pain")

	if _, status := s.Snapshot(); status != StatusPending {
		t.Fatalf("expected pending before advance, got %s", status)
	}

	var statuses []Status
	var last Update
	for i := 0; i < 4; i++ {
		last = acc.Advance(context.Background(), s)
		statuses = append(statuses, last.Status)
	}

	want := []Status{StatusStreaming, StatusStreaming, StatusStreaming, StatusComplete}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("status %d: got %s want %s", i, statuses[i], want[i])
		}
	}
	if last.Text != "## Most likely\n- ACS\n- PE" {
		t.Fatalf("unexpected final text: %q", last.Text)
	}
	if !last.Final || last.Err != "" {
		t.Fatalf("unexpected final update: %+v", last)
	}
}

func TestBeginRejectsBlankInput(t *testing.T) {
	src := &scriptedSource{chunks: fragments("unused")}
	acc := NewAccumulator(src)

	for _, user := range []string{"", "   ", "\n\t"} {
		s, err := acc.Begin(NewRequest("m", "sys", user))
		if !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("expected ErrEmptyMessage for %q, got %v", user, err)
		}
		if s != nil {
			t.Fatalf("expected no session for %q", user)
		}
	}
	if src.calls.Load() != 0 {
		t.Fatalf("source must not be called, got %d calls", src.calls.Load())
	}
}

func TestBeginRejectsMalformedRequest(t *testing.T) {
	acc := NewAccumulator(&scriptedSource{})

	cases := []Request{
		{Model: "m"},
		{Model: "m", Messages: []*schema.Message{schema.UserMessage("hi")}},
		{Model: "m", Messages: []*schema.Message{schema.UserMessage("a"), schema.SystemMessage("b")}},
		{Model: "m", Messages: []*schema.Message{schema.SystemMessage("a"), schema.UserMessage("b"), schema.UserMessage("c")}},
	}
	for i, req := range cases {
		if _, err := acc.Begin(req); !errors.Is(err, ErrMalformedRequest) {
			t.Fatalf("case %d: expected ErrMalformedRequest, got %v", i, err)
		}
	}
}

func TestEmptyResponseIsComplete(t *testing.T) {
	acc := NewAccumulator(&scriptedSource{})
	s := begin(t, acc, "hello")

	u := acc.Advance(context.Background(), s)
	if u.Status != StatusComplete || u.Text != "" || !u.Final || u.Err != "" {
		t.Fatalf("unexpected update: %+v", u)
	}
}

func TestEmptyFragmentsAreSkipped(t *testing.T) {
	acc := NewAccumulator(&scriptedSource{chunks: fragments("", "", "Differential:", "")})
	s := begin(t, acc, "hello")

	u := acc.Advance(context.Background(), s)
	if u.Status != StatusStreaming || u.Text != "Differential:" {
		t.Fatalf("unexpected first update: %+v", u)
	}

	u = acc.Advance(context.Background(), s)
	if u.Status != StatusComplete || u.Text != "Differential:" {
		t.Fatalf("unexpected final update: %+v", u)
	}
}

func TestFinishMarkerCompletesWithoutReadingFurther(t *testing.T) {
	chunks := fragments("done")
	chunks[0].ResponseMeta = &schema.ResponseMeta{FinishReason: "stop"}
	chunks = append(chunks, fragments(" ignored")...)

	acc := NewAccumulator(&scriptedSource{chunks: chunks})
	s := begin(t, acc, "hello")

	u := acc.Advance(context.Background(), s)
	if u.Status != StatusComplete || u.Text != "done" {
		t.Fatalf("unexpected update: %+v", u)
	}
}

func TestPartialThenFailPreservesContent(t *testing.T) {
	src := &scriptedSource{
		chunks: fragments("Base", "line labs:"),
		err:    &CompletionError{Message: "connection reset"},
	}
	acc := NewAccumulator(src)
	s := begin(t, acc, "hello")

	var u Update
	for !u.Final {
		u = acc.Advance(context.Background(), s)
	}

	if u.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", u.Status)
	}
	if u.Text != "Baseline labs:" {
		t.Fatalf("partial text overwritten: %q", u.Text)
	}
	if u.Err != "connection reset" || s.Err() != "connection reset" {
		t.Fatalf("unexpected error: %q", u.Err)
	}
}

func TestImmediateFailureProducesVisibleError(t *testing.T) {
	cases := map[string]*scriptedSource{
		"during stream": {err: &CompletionError{Message: "quota exceeded"}},
		"on open":       {openErr: &CompletionError{Message: "quota exceeded"}},
	}

	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			acc := NewAccumulator(src)
			s := begin(t, acc, "hello")

			u := acc.Advance(context.Background(), s)
			if u.Status != StatusFailed || !u.Final {
				t.Fatalf("expected failed final update, got %+v", u)
			}
			if u.Text != "Error: quota exceeded" {
				t.Fatalf("unexpected text: %q", u.Text)
			}
			if u.Err != "quota exceeded" {
				t.Fatalf("unexpected error: %q", u.Err)
			}
		})
	}
}

func TestWrappedSourceErrorKeepsMessage(t *testing.T) {
	inner := &CompletionError{Message: "invalid api key"}
	acc := NewAccumulator(&scriptedSource{openErr: errors.Join(errors.New("anthropic"), inner)})
	s := begin(t, acc, "hello")

	if u := acc.Advance(context.Background(), s); u.Err != "invalid api key" {
		t.Fatalf("unexpected error: %q", u.Err)
	}
}

func TestTerminalStateIsIdempotent(t *testing.T) {
	for name, src := range map[string]*scriptedSource{
		"complete": {chunks: fragments("a", "b")},
		"failed":   {chunks: fragments("a"), err: errors.New("boom")},
	} {
		t.Run(name, func(t *testing.T) {
			acc := NewAccumulator(src)
			s := begin(t, acc, "hello")

			var final Update
			for !final.Final {
				final = acc.Advance(context.Background(), s)
			}
			for i := 0; i < 3; i++ {
				again := acc.Advance(context.Background(), s)
				if again != final {
					t.Fatalf("advance %d changed terminal state: %+v vs %+v", i, again, final)
				}
			}
			if src.calls.Load() != 1 {
				t.Fatalf("source reopened: %d calls", src.calls.Load())
			}
		})
	}
}

func TestAppendOnlyMonotonicity(t *testing.T) {
	acc := NewAccumulator(&scriptedSource{chunks: fragments("a", "bc", "", "def", "g")})
	s := begin(t, acc, "hello")

	prev := ""
	for {
		u := acc.Advance(context.Background(), s)
		if !strings.HasPrefix(u.Text, prev) {
			t.Fatalf("text %q does not extend %q", u.Text, prev)
		}
		if u.Final {
			break
		}
		if len(u.Text) <= len(prev) {
			t.Fatalf("streaming update did not grow: %q", u.Text)
		}
		prev = u.Text
	}
	if text, _ := s.Snapshot(); text != "abcdefg" {
		t.Fatalf("concatenation mismatch: %q", text)
	}
}

func TestSnapshotsDuringAdvanceAreConsistent(t *testing.T) {
	parts := make([]string, 200)
	for i := range parts {
		parts[i] = "xy"
	}
	acc := NewAccumulator(&scriptedSource{chunks: fragments(parts...)})
	s := begin(t, acc, "hello")

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			text, _ := s.Snapshot()
			if len(text)%2 != 0 || strings.Count(text, "xy")*2 != len(text) {
				t.Errorf("observed torn text %q", text)
				return
			}
		}
	}()

	if _, err := acc.Drain(context.Background(), s, nil); err != nil {
		t.Fatalf("Drain err: %v", err)
	}
	close(done)
	wg.Wait()

	if text, status := s.Snapshot(); status != StatusComplete || len(text) != 400 {
		t.Fatalf("unexpected final state: %s len=%d", status, len(text))
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	a := NewAccumulator(&scriptedSource{chunks: fragments("first")})
	b := NewAccumulator(&scriptedSource{chunks: fragments("second")})
	s1 := begin(t, a, "one")
	s2 := begin(t, b, "two")

	var wg sync.WaitGroup
	var u1, u2 Update
	wg.Add(2)
	go func() { defer wg.Done(); u1, _ = a.Drain(context.Background(), s1, nil) }()
	go func() { defer wg.Done(); u2, _ = b.Drain(context.Background(), s2, nil) }()
	wg.Wait()

	if u1.Text != "first" || u2.Text != "second" {
		t.Fatalf("sessions leaked into each other: %q %q", u1.Text, u2.Text)
	}
	if s1.ID == s2.ID {
		t.Fatal("expected distinct session ids")
	}
}

func TestDrainRendersEveryUpdate(t *testing.T) {
	acc := NewAccumulator(&scriptedSource{chunks: fragments("a", "b")})

	var seen []Update
	final, err := acc.Run(context.Background(), NewRequest("m", "sys", "hi"), SinkFunc(func(u Update) error {
		seen = append(seen, u)
		return nil
	}))
	if err != nil {
		t.Fatalf("Run err: %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 renders, got %d", len(seen))
	}
	if seen[0].Text != "a" || seen[1].Text != "ab" || final.Status != StatusComplete {
		t.Fatalf("unexpected renders: %+v", seen)
	}
}

func TestRunRejectsBlankInput(t *testing.T) {
	src := &scriptedSource{}
	acc := NewAccumulator(src)

	if _, err := acc.Run(context.Background(), NewRequest("m", "sys", " "), nil); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if src.calls.Load() != 0 {
		t.Fatal("source must not be called")
	}
}

func TestDrainSinkErrorAbandonsSession(t *testing.T) {
	released := make(chan struct{})
	src := SourceFunc(func(ctx context.Context, _ string, _ []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
		sr, sw := schema.Pipe[*schema.Message](1)
		go func() {
			defer sw.Close()
			sw.Send(&schema.Message{Role: schema.Assistant, Content: "partial"}, nil)
			<-ctx.Done()
			close(released)
			sw.Send(nil, ctx.Err())
		}()
		return sr, nil
	})
	acc := NewAccumulator(src)
	s := begin(t, acc, "hello")

	sinkErr := errors.New("client gone")
	_, err := acc.Drain(context.Background(), s, SinkFunc(func(Update) error { return sinkErr }))
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("stream was not released after abandonment")
	}

	text, status := s.Snapshot()
	if status != StatusFailed || text != "partial" {
		t.Fatalf("unexpected state after abandonment: %s %q", status, text)
	}
}

func TestAdvanceAfterCloseDoesNotOpen(t *testing.T) {
	src := &scriptedSource{chunks: fragments("a")}
	acc := NewAccumulator(src)
	s := begin(t, acc, "hello")

	if err := s.Close(); err != nil {
		t.Fatalf("Close err: %v", err)
	}
	u := acc.Advance(context.Background(), s)
	if u.Status != StatusFailed || u.Err != ErrSessionClosed.Error() {
		t.Fatalf("unexpected update: %+v", u)
	}
	if src.calls.Load() != 0 {
		t.Fatal("closed session must not open the source")
	}
}

func TestRequestIsCopiedAtBegin(t *testing.T) {
	req := NewRequest("m", "sys", "original")
	acc := NewAccumulator(&scriptedSource{})
	s := begin(t, acc, "placeholder")
	s2, err := acc.Begin(req)
	if err != nil {
		t.Fatalf("Begin err: %v", err)
	}
	req.Messages[1].Content = "mutated"

	if got := s2.Request().UserText(); got != "original" {
		t.Fatalf("session request mutated: %q", got)
	}
	if s.Request().SystemText() != "prompt1 text" {
		t.Fatalf("unexpected system text: %q", s.Request().SystemText())
	}
}
