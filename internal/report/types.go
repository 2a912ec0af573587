package report

import (
	"cmp"
	"slices"

	"git.home.luguber.info/inful/docverify/internal/foundation/normalization"
	"git.home.luguber.info/inful/docverify/internal/source"
)

// Severity indicates the importance level of a validation issue.
type Severity int

const (
	// SeverityInfo is informational and never affects the verdict on its own.
	SeverityInfo Severity = iota
	// SeverityWarning fails the build only when fail_on_warning is set.
	SeverityWarning
	// SeverityError fails the build at the default threshold.
	SeverityError
	// SeverityCritical is reserved for corpus-wide integrity problems such as duplicate ids.
	SeverityCritical
)

var severityNormalizer = normalization.NewNormalizer("severity", map[string]Severity{
	"info":     SeverityInfo,
	"warning":  SeverityWarning,
	"warn":     SeverityWarning,
	"error":    SeverityError,
	"critical": SeverityCritical,
}, SeverityWarning)

// ParseSeverity converts a configuration string into a Severity. The empty
// string yields SeverityWarning.
func ParseSeverity(raw string) (Severity, error) {
	return severityNormalizer.Parse(raw)
}

// String returns the human-readable severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the lower-case name so JSON reports stay readable.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(normalization.Key(s.String())), nil
}

// UnmarshalText parses a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Code identifies the kind of problem an issue describes.
type Code string

const (
	CodeParseWarning           Code = "PARSE_WARNING"
	CodeParseFailure           Code = "PARSE_FAILURE"
	CodeDuplicateID            Code = "DUPLICATE_ID"
	CodeDuplicateObject        Code = "DUPLICATE_OBJECT"
	CodeUnknownRole            Code = "UNKNOWN_ROLE"
	CodeBrokenReference        Code = "BROKEN_REFERENCE"
	CodeConstraintViolation    Code = "CONSTRAINT_VIOLATION"
	CodeUnknownConstraint      Code = "UNKNOWN_CONSTRAINT"
	CodeMissingToctreeEntry    Code = "MISSING_TOCTREE_ENTRY"
	CodeOrphanDocument         Code = "ORPHAN_DOCUMENT"
	CodeBrokenItemLink         Code = "BROKEN_ITEM_LINK"
	CodeUnknownDirective       Code = "UNKNOWN_DIRECTIVE"
	CodeInvalidDirective       Code = "INVALID_DIRECTIVE"
	CodeInvalidDirectiveOption Code = "INVALID_DIRECTIVE_OPTION"
	CodeBuildCanceled          Code = "BUILD_CANCELED"
)

// Issue represents a single problem found during a build.
type Issue struct {
	Code        Code              `json:"code"`
	Severity    Severity          `json:"severity"`
	Location    source.Location   `json:"location"`
	Message     string            `json:"message"`
	Suggestions []string          `json:"suggestions,omitempty"`
	Related     []source.Location `json:"related,omitempty"`
	Rule        string            `json:"rule,omitempty"`
	ItemID      string            `json:"item_id,omitempty"`
}

// Compare orders issues by location, then code, then message.
func (i Issue) Compare(o Issue) int {
	if c := i.Location.Compare(o.Location); c != 0 {
		return c
	}
	if c := cmp.Compare(i.Code, o.Code); c != 0 {
		return c
	}
	return cmp.Compare(i.Message, o.Message)
}

// Sort orders issues in place so output does not depend on worker scheduling.
func Sort(issues []Issue) {
	slices.SortStableFunc(issues, Issue.Compare)
}
