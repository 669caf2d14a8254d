package task

import (
	"encoding/json"
	"sort"
	"strings"
)

// StepState captures one pipeline step from a status payload. Data keeps the
// step's raw payload so callers can surface fields this client does not model.
type StepState struct {
	Status string          `json:"status,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// StepError is a per-step failure reported alongside the overall status.
type StepError struct {
	Step      string `json:"step,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// StatusSnapshot is the last full status payload received for a task. It is
// kept verbatim next to the reduced Task fields so detail views and the
// persisted session survive without re-fetching.
type StatusSnapshot struct {
	Status           string               `json:"status,omitempty"`
	Progress         float64              `json:"progress,omitempty"`
	CurrentStep      string               `json:"current_step,omitempty"`
	Steps            map[string]StepState `json:"steps,omitempty"`
	Errors           []StepError          `json:"errors,omitempty"`
	TaskType         TaskType             `json:"task_type,omitempty"`
	VoiceLanguage    string               `json:"voice_language,omitempty"`
	SubtitleLanguage string               `json:"subtitle_language,omitempty"`
	Filename         string               `json:"filename,omitempty"`
	FileExt          string               `json:"file_ext,omitempty"`
}

// Clone returns a deep copy so stored snapshots cannot alias caller maps.
func (s *StatusSnapshot) Clone() *StatusSnapshot {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Steps != nil {
		cp.Steps = make(map[string]StepState, len(s.Steps))
		for name, step := range s.Steps {
			if step.Data != nil {
				step.Data = append(json.RawMessage(nil), step.Data...)
			}
			cp.Steps[name] = step
		}
	}
	if s.Errors != nil {
		cp.Errors = append([]StepError(nil), s.Errors...)
	}
	return &cp
}

// StepNames returns the snapshot's step names in stable order.
func (s *StatusSnapshot) StepNames() []string {
	if s == nil || len(s.Steps) == 0 {
		return nil
	}
	names := make([]string, 0, len(s.Steps))
	for name := range s.Steps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FirstError returns the first reported step failure, preferring entries
// with message text, or an empty string when the snapshot carries none.
func (s *StatusSnapshot) FirstError() string {
	if s == nil {
		return ""
	}
	for _, stepErr := range s.Errors {
		msg := strings.TrimSpace(stepErr.Error)
		if msg == "" {
			continue
		}
		if step := strings.TrimSpace(stepErr.Step); step != "" {
			return step + ": " + msg
		}
		return msg
	}
	return ""
}
