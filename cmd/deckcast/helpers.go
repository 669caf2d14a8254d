package main

import (
	"fmt"
	"strings"
	"time"

	"deckcast/internal/language"
	"deckcast/internal/task"
)

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// displayTaskID renders an identifier for humans. Synthetic placeholders are
// an implementation detail and read as a pending registration instead.
func displayTaskID(id string) string {
	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return "-"
	case task.IsSyntheticID(id):
		return "(pending)"
	default:
		return id
	}
}

func formatAge(when time.Time) string {
	if when.IsZero() {
		return "-"
	}
	elapsed := time.Since(when)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(elapsed.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(elapsed.Hours()/24))
	}
}

// describeLanguage pairs a BCP-47 tag with its display name, e.g. "en (English)".
func describeLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	name := language.DisplayName(tag)
	if name == "" || strings.EqualFold(name, tag) {
		return tag
	}
	return fmt.Sprintf("%s (%s)", tag, name)
}

func describeTaskType(taskType task.TaskType) string {
	switch taskType {
	case task.TypeVideo:
		return "video"
	case task.TypePodcast:
		return "podcast"
	case task.TypeBoth:
		return "video + podcast"
	default:
		return "unknown"
	}
}
