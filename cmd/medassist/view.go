package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/med-assistant/backend/internal/service/stream"
)

var (
	blue = lipgloss.Color("4")
	red  = lipgloss.Color("9")
	grey = lipgloss.Color("8")
)

// answerView writes a growing answer to a terminal. Every update carries the whole
// answer so far; only the part not yet written is printed.
type answerView struct {
	w       io.Writer
	tty     bool
	header  string
	printed string
	started bool

	title lipgloss.Style
	err   lipgloss.Style
	muted lipgloss.Style
}

func newAnswerView(w io.Writer, tty bool) *answerView {
	r := lipgloss.NewRenderer(w)
	return &answerView{
		w:     w,
		tty:   tty,
		title: r.NewStyle().Bold(true).Foreground(blue),
		err:   r.NewStyle().Foreground(red),
		muted: r.NewStyle().Foreground(grey),
	}
}

// Render implements stream.Sink.
func (v *answerView) Render(u stream.Update) error {
	if !v.started {
		v.started = true
		if v.tty && v.header != "" {
			if _, err := fmt.Fprintln(v.w, v.title.Render(v.header)); err != nil {
				return err
			}
		}
	}

	body := u.Text
	failure := ""
	if u.Final && u.Status == stream.StatusFailed && u.Err != "" {
		failure = stream.DisplayError(u.Err)
		if body == failure {
			body = v.printed
		}
	}

	if strings.HasPrefix(body, v.printed) && len(body) > len(v.printed) {
		if _, err := io.WriteString(v.w, body[len(v.printed):]); err != nil {
			return err
		}
		v.printed = body
	}

	if !u.Final {
		return nil
	}

	if failure != "" {
		if v.printed != "" {
			failure = "\n\n" + v.style(v.err, failure)
		} else {
			failure = v.style(v.err, failure)
		}
		if _, err := io.WriteString(v.w, failure); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(v.w); err != nil {
		return err
	}
	if v.tty {
		_, err := fmt.Fprintln(v.w, v.muted.Render(string(u.Status)))
		return err
	}
	return nil
}

func (v *answerView) style(s lipgloss.Style, text string) string {
	if !v.tty {
		return text
	}
	return s.Render(text)
}
