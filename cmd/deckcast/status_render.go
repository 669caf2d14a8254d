package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"deckcast/internal/task"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

var kindStyles = [...]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

func (k statusKind) style() (label, color string) {
	if int(k) < 0 || int(k) >= len(kindStyles) {
		k = statusInfo
	}
	return kindStyles[k].label, kindStyles[k].color
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	kindLabel, color := kind.style()
	text := "[" + kindLabel + "]"
	if message != "" {
		text += " " + message
	}
	line := renderDetailLine(label, text)
	if colorize && color != "" {
		line = color + line + ansiReset
	}
	return line
}

func renderDetailLine(label, value string) string {
	return fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", value)
}

func renderSectionHeader(title string, colorize bool) string {
	header := "== " + strings.TrimSpace(title) + " =="
	if colorize {
		header = ansiBlue + header + ansiReset
	}
	return header
}

func shouldColorize(writer io.Writer) bool {
	if file, ok := writer.(*os.File); ok {
		return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
	}
	return false
}

func taskStatusKind(status task.Status) statusKind {
	switch status {
	case task.StatusCompleted:
		return statusOK
	case task.StatusError:
		return statusError
	case task.StatusCancelled:
		return statusWarn
	default:
		return statusInfo
	}
}

// stepStatusKind classifies the raw per-step status strings the backend
// reports inside status payloads.
func stepStatusKind(raw string) statusKind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "done", "success":
		return statusOK
	case "failed", "error":
		return statusError
	case "skipped", "cancelled":
		return statusWarn
	default:
		return statusInfo
	}
}
