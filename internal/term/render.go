// Package term prints the dashboard surface to a terminal for the show command.
package term

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"balances/internal/view"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#9A9A9A", Dark: "#6C6C6C"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	danger    = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF6B6B"}
)

type styles struct {
	title    lipgloss.Style
	muted    lipgloss.Style
	failure  lipgloss.Style
	grand    lipgloss.Style
	pill     lipgloss.Style
	selected lipgloss.Style
	person   lipgloss.Style
	name     lipgloss.Style
	badge    lipgloss.Style
	account  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:    r.NewStyle().Bold(true).Foreground(highlight),
		muted:    r.NewStyle().Foreground(subtle),
		failure:  r.NewStyle().Foreground(danger).Bold(true),
		grand:    r.NewStyle().Bold(true),
		pill:     r.NewStyle().Foreground(subtle).Padding(0, 1),
		selected: r.NewStyle().Bold(true).Foreground(highlight).Padding(0, 1),
		person:   r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(subtle).Padding(0, 1).MarginTop(1),
		name:     r.NewStyle().Bold(true),
		badge:    r.NewStyle().Foreground(highlight),
		account:  r.NewStyle().PaddingLeft(2),
	}
}

// Render writes s to w. Colors follow what w supports; plain writers get
// plain text.
func Render(w io.Writer, s view.Surface) error {
	st := newStyles(lipgloss.NewRenderer(w))

	var b strings.Builder
	b.WriteString(st.title.Render("Balances"))
	if s.AsOf != "" {
		b.WriteString("  " + st.muted.Render(s.AsOf))
	}
	b.WriteString("\n")

	if s.Failed() {
		b.WriteString(st.failure.Render(s.Failure))
		b.WriteString("\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString(grandLine(st, s))
	b.WriteString("\n")

	for _, p := range s.People {
		b.WriteString(st.person.Render(personBlock(st, p)))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func grandLine(st styles, s view.Surface) string {
	pills := make([]string, 0, len(s.Currencies))
	for _, c := range s.Currencies {
		if c.Selected {
			pills = append(pills, st.selected.Render("["+c.Code.String()+"]"))
			continue
		}
		pills = append(pills, st.pill.Render(c.Code.String()))
	}

	line := "Grand total " + st.grand.Render(s.GrandTotal)
	if s.GrandNote != "" {
		line += "  " + st.muted.Render(s.GrandNote)
	}
	return line + "\n" + strings.Join(pills, "")
}

func personBlock(st styles, p view.PersonSection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  %s", st.name.Render(p.Name), p.Total, st.muted.Render(p.Share))
	for _, a := range p.Accounts {
		b.WriteString("\n")
		b.WriteString(st.account.Render(accountLine(st, a)))
	}
	return b.String()
}

func accountLine(st styles, a view.AccountCard) string {
	parts := []string{a.Title, st.badge.Render(a.Badge), a.Total}
	if a.Free != "" {
		parts = append(parts, st.muted.Render("free "+a.Free))
	}
	if a.Portfolio != "" {
		parts = append(parts, st.muted.Render("portfolio "+a.Portfolio))
	}
	line := strings.Join(parts, "  ")
	if a.Error != "" {
		line += "  " + st.failure.Render("! "+a.Error)
	}
	return line
}
