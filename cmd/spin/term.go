package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/xtding233/fairwheel/internal/wheel"
)

// termPresenter renders the animation as a single rewritten line.
type termPresenter struct {
	out   io.Writer
	names []string
	width   int
	done    chan wheel.Summary
	aborted chan string
}

func newTermPresenter(out io.Writer, names []string) *termPresenter {
	w := 0
	for _, n := range names {
		w = max(w, len(n))
	}
	return &termPresenter{
		out:     out,
		names:   names,
		width:   w + 4,
		done:    make(chan wheel.Summary, 1),
		aborted: make(chan string, 1),
	}
}

func (t *termPresenter) line(s string) {
	fmt.Fprintf(t.out, "\r%-*s", t.width, s)
}

func (t *termPresenter) name(i int) string {
	if i < 0 || i >= len(t.names) {
		return ""
	}
	return t.names[i]
}

func (t *termPresenter) ScanHighlight(i int) {
	if i == wheel.NoEntry {
		return
	}
	t.line("> " + t.name(i))
}

func (t *termPresenter) WinnerHighlight(i int, on bool) {
	if on {
		t.line("* " + t.name(i) + " *")
	} else {
		t.line("")
	}
}

func (t *termPresenter) ClearHighlights() { t.line("") }

func (t *termPresenter) Status(text string) {
	fmt.Fprintf(t.out, "\r%-*s\r%s\n", t.width, "", text)
}

func (t *termPresenter) CountersRefreshed() {}

func (t *termPresenter) StateChanged(wheel.State) {}

func (t *termPresenter) BatchAborted(batchID string) {
	select {
	case t.aborted <- batchID:
	default:
	}
}

func (t *termPresenter) BatchFinished(s wheel.Summary) {
	fmt.Fprintf(t.out, "winners: %s\n", strings.Join(s.Names(), ", "))
	select {
	case t.done <- s:
	default:
	}
}
