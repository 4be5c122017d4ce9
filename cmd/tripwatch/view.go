package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/realtime"
	"TRIPCOLLAB_BACK-END/internal/tally"
)

var (
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	categoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	quorumStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	belowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Italic(true)
)

const recentMessages = 5

type view struct {
	out      io.Writer
	plan     models.Plan
	required int
}

func newView(out io.Writer, plan models.Plan, members int) *view {
	return &view{out: out, plan: plan, required: tally.RequiredVotes(members)}
}

func (v *view) notice(text string) {
	fmt.Fprintln(v.out, noticeStyle.Render(text))
}

// render prints one frame: each category with its tallies, then the latest
// messages. Pending optimistic entries are marked.
func (v *view) render(rec *realtime.Reconciler) {
	pending := map[string]bool{}
	for _, op := range rec.Pending() {
		if op.State == realtime.OpPending {
			pending[op.LocalID.String()] = true
		}
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s [%s]  quorum %d", v.plan.Destination, v.plan.Status, v.required)))
	b.WriteString("\n")
	for _, c := range models.Categories {
		b.WriteString(categoryStyle.Render(strings.ToUpper(string(c))))
		b.WriteString("\n")
		props := rec.Proposals(c)
		if len(props) == 0 {
			b.WriteString(mutedStyle.Render("  (none)"))
			b.WriteString("\n")
		}
		for _, p := range props {
			t := rec.Tally(p.ID)
			style := belowStyle
			if t.Upvotes >= v.required {
				style = quorumStyle
			}
			line := fmt.Sprintf("  %+3d  (+%d/-%d)  %s", t.Score, t.Upvotes, t.Downvotes, p.Title)
			if pending[p.ID.String()] {
				line += mutedStyle.Render("  sending...")
			}
			b.WriteString(style.Render(line))
			b.WriteString("\n")
		}
	}

	msgs := rec.Messages()
	if len(msgs) > recentMessages {
		msgs = msgs[len(msgs)-recentMessages:]
	}
	if len(msgs) > 0 {
		b.WriteString(categoryStyle.Render("MESSAGES"))
		b.WriteString("\n")
	}
	for _, m := range msgs {
		line := fmt.Sprintf("  %s: %s", m.UserName, m.Body)
		if pending[m.ID.String()] {
			line += mutedStyle.Render("  sending...")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	fmt.Fprintln(v.out, b.String())
}
