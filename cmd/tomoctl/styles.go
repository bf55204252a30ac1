package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/iwtcode/tomographyAdapter/models"
	"github.com/iwtcode/tomographyAdapter/protocol"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(1).PaddingRight(1)

	timeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	deviceStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#43E6D6"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5E5E"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#32CD32"))
)

func renderEvent(ev models.Event) string {
	ts := timeStyle.Render(ev.Timestamp.Format("15:04:05.000"))
	switch ev.Type {
	case models.EventMessage:
		status := successStyle.Render(ev.StatusName)
		if !ev.OK {
			status = errorStyle.Render(ev.StatusName)
		}
		line := fmt.Sprintf("%s %s %s: %s", ts, deviceStyle.Render("["+ev.Device+"]"), ev.FunctionName, status)
		if ev.Payload != nil {
			line += " " + valueStyle.Render(describe(ev.Payload))
		}
		if ev.ImageName != "" {
			line += " -> " + valueStyle.Render(ev.ImageName)
		}
		return line
	case models.EventDiagnostic:
		return ts + " " + errorStyle.Render(ev.Line())
	default:
		return ts + " " + successStyle.Render(ev.Line())
	}
}

// describe сокращает массивы до формы и типа.
func describe(payload any) string {
	if a, ok := payload.(*protocol.Array); ok {
		return fmt.Sprintf("array %dx%d %s", a.Rows, a.Cols, a.DType)
	}
	return fmt.Sprintf("%v", payload)
}
