package ai

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
)

type drained struct {
	text   string
	finish string
	err    error
}

func drain(t *testing.T, sr *schema.StreamReader[*schema.Message]) drained {
	t.Helper()
	defer sr.Close()

	var out drained
	var b strings.Builder
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			out.err = err
			break
		}
		if chunk == nil {
			continue
		}
		b.WriteString(chunk.Content)
		if chunk.ResponseMeta != nil && chunk.ResponseMeta.FinishReason != "" {
			out.finish = chunk.ResponseMeta.FinishReason
		}
	}
	out.text = b.String()
	return out
}

func writeEvents(w http.ResponseWriter, lines ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for _, line := range lines {
		_, _ = io.WriteString(w, line+"\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

func exchange() []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage("You are an expert medical AI diagnostician."),
		schema.UserMessage("65F with chest pain"),
	}
}
