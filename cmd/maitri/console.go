package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/samber/lo"

	"maitri/internal/domain"
)

// console prints turn events to a terminal. It is shared by the talk loop
// and the controller's event goroutines.
type console struct {
	mu       sync.Mutex
	out      io.Writer
	lastTick int
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) TurnStateChanged(state domain.TurnStatus, reason domain.TurnReason) {
	if state == domain.TurnStatusRecording {
		c.mu.Lock()
		c.lastTick = 0
		c.mu.Unlock()
	}
	if message := domain.ReasonMessage(reason); message != "" {
		c.printf("[%s] %s\n", state, message)
	}
}

func (c *console) RecordingProgress(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seconds <= c.lastTick {
		return
	}
	c.lastTick = seconds
	fmt.Fprintf(c.out, "  recording %s\n", domain.FormatDuration(seconds))
}

func (c *console) TurnUpdated(domain.ConversationTurn) {}

func (c *console) TurnError(code domain.ErrorCode, detail string) {
	c.printf("! %s\n", domain.ErrorMessage(code, detail))
}

// turn prints the finished exchange once StopRecording returns.
func (c *console) turn(turn domain.ConversationTurn) {
	if turn.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if turn.UserText != "" {
		fmt.Fprintf(c.out, "you:    %s\n", turn.UserText)
	}
	fmt.Fprintf(c.out, "maitri: %s\n", turn.ResponseText)
	for _, scheme := range turn.MatchedSchemes {
		fmt.Fprintf(c.out, "  - %s (%s)\n", scheme.Title, scheme.ID)
	}
}

func (c *console) schemes(schemes []domain.SchemeSummary, detailed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(schemes) == 0 {
		fmt.Fprintln(c.out, "no schemes")
		return
	}
	for _, scheme := range schemes {
		fmt.Fprintf(c.out, "%s\t%s\n", scheme.ID, scheme.Title)
		if !detailed {
			continue
		}
		if scheme.Description != "" {
			fmt.Fprintf(c.out, "  %s\n", scheme.Description)
		}
		fmt.Fprintf(c.out, "  Eligibility: %s\n", scheme.EligibilityText)
		writeList(c.out, "Required documents", scheme.RequiredDocuments, "-")
		writeList(c.out, "How to apply", scheme.ApplicationSteps, "")
		if scheme.BenefitsText != "" {
			fmt.Fprintf(c.out, "  Benefits: %s\n", scheme.BenefitsText)
		}
	}
}

// writeList prints items as a bulleted list, or numbered when bullet is empty.
func writeList(w io.Writer, heading string, items []string, bullet string) {
	if len(items) == 0 {
		return
	}
	lines := lo.Map(items, func(item string, i int) string {
		marker := bullet
		if marker == "" {
			marker = fmt.Sprintf("%d.", i+1)
		}
		return fmt.Sprintf("    %s %s", marker, item)
	})
	fmt.Fprintf(w, "  %s:\n%s\n", heading, strings.Join(lines, "\n"))
}
