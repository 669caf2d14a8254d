package task

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the client-observed lifecycle of a generation task.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusIdle,
	StatusUploading,
	StatusProcessing,
	StatusCompleted,
	StatusError,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether no further polling can advance the status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// MapBackendStatus translates a pipeline status string into the client
// status it drives. The second return is false for values the protocol
// does not define; those still map to StatusError per the state machine.
func MapBackendStatus(value string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "completed":
		return StatusCompleted, true
	case "processing", "uploaded":
		return StatusProcessing, true
	case "cancelled":
		return StatusIdle, true
	case "failed":
		return StatusError, true
	default:
		return StatusError, false
	}
}

// TaskType declares which artifacts the pipeline composes for a task.
type TaskType string

const (
	TypeVideo   TaskType = "video"
	TypePodcast TaskType = "podcast"
	TypeBoth    TaskType = "both"
)

// ParseTaskType converts a string into a known TaskType.
func ParseTaskType(value string) (TaskType, bool) {
	normalized := TaskType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case TypeVideo, TypePodcast, TypeBoth:
		return normalized, true
	default:
		return "", false
	}
}

// IncludesVideo reports whether the declared output carries a video artifact.
func (t TaskType) IncludesVideo() bool {
	return t == TypeVideo || t == TypeBoth
}

// IncludesAudio reports whether the declared output carries a podcast artifact.
func (t TaskType) IncludesAudio() bool {
	return t == TypePodcast || t == TypeBoth
}

// SourceType identifies the kind of document a submission uploads.
type SourceType string

const (
	SourcePDF    SourceType = "pdf"
	SourceSlides SourceType = "slides"
)

var slideExtensions = map[string]struct{}{
	".ppt":  {},
	".pptx": {},
	".odp":  {},
	".key":  {},
}

// ParseSourceType converts a string into a known SourceType.
func ParseSourceType(value string) (SourceType, bool) {
	normalized := SourceType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case SourcePDF, SourceSlides:
		return normalized, true
	default:
		return "", false
	}
}

// AllowsExtension reports whether a file extension matches the source type.
// The extension must include its leading dot; matching is case-insensitive.
func (s SourceType) AllowsExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimSpace(ext))
	switch s {
	case SourcePDF:
		return ext == ".pdf"
	case SourceSlides:
		_, ok := slideExtensions[ext]
		return ok
	default:
		return false
	}
}

// SyntheticIDPrefix marks placeholder identifiers minted client-side before
// the backend has registered the task. Synthetic identifiers are never sent
// to status or cancel endpoints and are excluded from search results.
const SyntheticIDPrefix = "local-"

// NewSyntheticID mints a placeholder task identifier.
func NewSyntheticID() string {
	return SyntheticIDPrefix + uuid.NewString()
}

// IsSyntheticID reports whether an identifier is a client-side placeholder.
func IsSyntheticID(id string) bool {
	return strings.HasPrefix(strings.TrimSpace(id), SyntheticIDPrefix)
}

// UsableID reports whether an identifier can address backend endpoints.
func UsableID(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && !IsSyntheticID(id)
}

// Task is the unit of work the orchestrator tracks end to end.
type Task struct {
	ID           string          `json:"task_id,omitempty"`
	FileID       string          `json:"file_id,omitempty"`
	Status       Status          `json:"status"`
	Progress     int             `json:"progress"`
	Details      *StatusSnapshot `json:"details,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at,omitempty"`
}

// New returns an idle task with no identifiers.
func New() Task {
	return Task{Status: StatusIdle}
}

// HasUsableID reports whether the task can be polled or cancelled.
func (t Task) HasUsableID() bool {
	return UsableID(t.ID)
}

// InFlight reports whether the task is between submission and a terminal state.
func (t Task) InFlight() bool {
	return t.Status == StatusUploading || t.Status == StatusProcessing
}

// NeedsResolution reports whether the identifier resolver should run: the
// task has an upload identifier but no backend identifier it can act on.
func (t Task) NeedsResolution() bool {
	switch t.Status {
	case StatusUploading, StatusProcessing, StatusCompleted:
	default:
		return false
	}
	return strings.TrimSpace(t.FileID) != "" && !t.HasUsableID()
}

// TaskType returns the declared output type from the last status payload.
func (t Task) TaskType() TaskType {
	if t.Details == nil {
		return ""
	}
	return t.Details.TaskType
}

// NormalizeProgress converts a payload progress value into a 0-100 integer.
// The pipeline reports progress either as a 0-1 fraction or a 0-100 number;
// values in (0, 1] are treated as fractions.
func NormalizeProgress(raw float64) int {
	switch {
	case math.IsNaN(raw) || raw <= 0:
		return 0
	case raw <= 1:
		return int(math.Round(raw * 100))
	case raw >= 100:
		return 100
	default:
		return int(math.Round(raw))
	}
}
