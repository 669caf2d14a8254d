package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var englishNames = display.English.Tags()

// Normalize parses a BCP 47 language tag and returns its canonical form.
// The second return is false when the value does not parse as a tag.
func Normalize(code string) (string, bool) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "", false
	}
	tag, err := xlanguage.Parse(trimmed)
	if err != nil {
		return "", false
	}
	return tag.String(), true
}

// Valid reports whether the value parses as a BCP 47 language tag.
func Valid(code string) bool {
	_, ok := Normalize(code)
	return ok
}

// DisplayName returns a human-readable English name for a language tag,
// such as "American English" for "en-US". Unparseable values are returned
// unchanged so callers can always render something.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return ""
	}
	tag, err := xlanguage.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	if name := englishNames.Name(tag); name != "" {
		return name
	}
	return trimmed
}

// Base returns the two-letter base language for a tag, such as "en" for
// "en-US". Unparseable values return the empty string.
func Base(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return ""
	}
	tag, err := xlanguage.Parse(trimmed)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}
