package render

import (
	"strings"
	"testing"

	"github.com/zhouzirui/med-assistant/backend/internal/service/stream"
)

func TestHTMLRendersTables(t *testing.T) {
	md := "## Most likely\n\n| Dx | Next step |\n|---|---|\n| ACS | ECG |\n"
	out, err := New().HTML(md)
	if err != nil {
		t.Fatalf("HTML err: %v", err)
	}
	if !strings.Contains(out, "<h2>Most likely</h2>") || !strings.Contains(out, "<table>") {
		t.Fatalf("unexpected html: %s", out)
	}
}

func TestHTMLOmitsRawHTML(t *testing.T) {
	out, err := New().HTML("<script>alert(1)</script>\n\nok")
	if err != nil {
		t.Fatalf("HTML err: %v", err)
	}
	if strings.Contains(out, "<script>") {
		t.Fatalf("raw html leaked: %s", out)
	}
	if !strings.Contains(out, "<!-- raw HTML omitted -->") || !strings.Contains(out, "<p>ok</p>") {
		t.Fatalf("unexpected html: %s", out)
	}
}

func TestDisplayText(t *testing.T) {
	cases := []struct {
		name string
		in   stream.Update
		want string
	}{
		{"streaming", stream.Update{Text: "partial", Status: stream.StatusStreaming}, "partial"},
		{"immediate failure", stream.Update{Text: "Error: quota exceeded", Status: stream.StatusFailed, Err: "quota exceeded"}, "Error: quota exceeded"},
		{"partial failure", stream.Update{Text: "Baseline labs:", Status: stream.StatusFailed, Err: "connection reset"}, "Baseline labs:\n\nError: connection reset"},
		{"complete", stream.Update{Text: "done", Status: stream.StatusComplete}, "done"},
	}
	for _, tc := range cases {
		if got := DisplayText(tc.in); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}
