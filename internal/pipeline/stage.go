package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Stage is one step of the reconciliation run.
type Stage int

const (
	// Raw reads the source exports into raw columnar tables.
	Raw Stage = iota

	// Cleaned projects, renames and normalizes the seven source tables.
	Cleaned

	// Mixed joins the cleaned tables into the output layouts.
	Mixed
)

// ErrInvalidStage is returned for an unknown stage name.
var ErrInvalidStage = errors.New("stage must be raw, clean or mix")

// ParseStage converts a command-line stage name to a Stage.
func ParseStage(s string) (Stage, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raw":
		return Raw, nil
	case "clean", "cleaned":
		return Cleaned, nil
	case "mix", "mixed":
		return Mixed, nil
	default:
		return 0, fmt.Errorf("%w: got %q", ErrInvalidStage, s)
	}
}

// String returns the stage name used in logs, summaries and manifests.
func (s Stage) String() string {
	switch s {
	case Raw:
		return "raw"
	case Cleaned:
		return "cleaned"
	case Mixed:
		return "mixed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Next returns the stage that follows s. ok is false for Mixed.
func (s Stage) Next() (next Stage, ok bool) {
	if s < Raw || s >= Mixed {
		return s, false
	}
	return s + 1, true
}

// previous returns the stage whose output s reads.
func (s Stage) previous() (Stage, bool) {
	if s <= Raw || s > Mixed {
		return s, false
	}
	return s - 1, true
}
