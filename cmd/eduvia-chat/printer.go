package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/glamour"

	"eduvia/internal/client"
	"eduvia/internal/models"
)

type markdownRenderer struct {
	gr *glamour.TermRenderer
}

func newMarkdownRenderer() (*markdownRenderer, error) {
	gr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil, fmt.Errorf("create glamour renderer: %w", err)
	}
	return &markdownRenderer{gr: gr}, nil
}

func (r *markdownRenderer) render(text string) string {
	out, err := r.gr.Render(text)
	if err != nil {
		return text
	}
	return out
}

// printer echoes assistant entries as they change. Without a markdown
// renderer text is streamed as it arrives; with one, the finished answer is
// rendered once.
type printer struct {
	mu      sync.Mutex
	out     io.Writer
	md      *markdownRenderer
	printed map[string]int
}

func newPrinter(out io.Writer, md *markdownRenderer) *printer {
	return &printer{out: out, md: md, printed: make(map[string]int)}
}

func (p *printer) onChange(e client.Entry) {
	if e.Role != models.RoleAssistant {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Status {
	case client.StatusPending:
		if p.md != nil {
			return
		}
		done := p.printed[e.ID]
		if len(e.Content) > done {
			fmt.Fprint(p.out, e.Content[done:])
			p.printed[e.ID] = len(e.Content)
		}
	case client.StatusDone:
		if p.md != nil {
			fmt.Fprint(p.out, p.md.render(e.Content))
		} else {
			if done := p.printed[e.ID]; len(e.Content) > done {
				fmt.Fprint(p.out, e.Content[done:])
			}
			fmt.Fprintln(p.out)
		}
		delete(p.printed, e.ID)
	case client.StatusFailed:
		if p.printed[e.ID] > 0 {
			fmt.Fprintln(p.out)
		}
		fmt.Fprintln(p.out, e.Content)
		delete(p.printed, e.ID)
	}
}
