package app

import (
	"fmt"
	"strings"

	"github.com/ppiankov/hedgehog/internal/bridge"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("hedgehog"))
	b.WriteString("\n\n")

	svc := m.svc.State()
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Async state:"), m.styled(svc.Kind, describe(svc)))

	if m.focus == focusLabel {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Label:"), m.input.View())
	} else {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Label:"), m.fields.Label)
	}
	fmt.Fprintf(&b, "%s %.1f\n", labelStyle.Render("Value:"), m.value)

	if m.auth != nil {
		b.WriteString("\n")
		b.WriteString(m.renderAuth())
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help()))
	return b.String()
}

func (m Model) renderAuth() string {
	var b strings.Builder
	st := m.auth.State()
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Auth:"), m.styled(st.Kind, describe(st)))
	if m.known.AuthorizeURL != "" && m.known.Username == "" {
		b.WriteString(dimStyle.Render("open this page and paste the code below:"))
		b.WriteString("\n")
		b.WriteString(m.known.AuthorizeURL)
		b.WriteString("\n")
	}
	if m.focus == focusAuth {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

func (m Model) styled(k bridge.Kind, text string) string {
	switch k {
	case bridge.Awaiting, bridge.Updating:
		return runStyle.Render(spinnerChars[m.frame%len(spinnerChars)] + " " + text)
	case bridge.Complete:
		return doneStyle.Render(text)
	case bridge.Error:
		return failedStyle.Render(text)
	default:
		return warnStyle.Render(text)
	}
}

func (m Model) help() string {
	if m.focus != focusNone {
		return "enter: submit  tab: next field  esc: cancel"
	}
	parts := []string{"e: async invoke", "+: increment", "a: sign in", "tab: edit label"}
	if m.auth != nil {
		parts = append(parts, "enter: auth input")
	}
	parts = append(parts, "q: quit")
	return strings.Join(parts, "  ")
}
