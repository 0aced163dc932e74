// Package failure defines the error taxonomy shared by the asset components.
//
// Errors are tagged with one of the exported sentinels through Wrap so callers
// can classify them with errors.Is without parsing messages. Only structural
// archive errors abort a whole operation; the rest are recovered at single
// asset or single file granularity by the batch loops.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrStructuralValidation = errors.New("structural validation error")
	ErrMatchNotFound        = errors.New("match not found")
	ErrAmbiguousMatch       = errors.New("ambiguous match")
	ErrPhysicalIO           = errors.New("physical io error")
	ErrTranscode            = errors.New("transcode failure")
	ErrConsistency          = errors.New("consistency violation")
	ErrInvalidRole          = errors.New("invalid role")
	ErrInvalidIdentity      = errors.New("invalid identity")
	ErrPrimaryOccupied      = errors.New("primary already present")
	ErrNotFound             = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrPhysicalIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short stable label for the sentinel err is tagged with, or
// "unknown".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStructuralValidation):
		return "structural_validation"
	case errors.Is(err, ErrMatchNotFound):
		return "match_not_found"
	case errors.Is(err, ErrAmbiguousMatch):
		return "ambiguous_match"
	case errors.Is(err, ErrTranscode):
		return "transcode"
	case errors.Is(err, ErrConsistency):
		return "consistency"
	case errors.Is(err, ErrInvalidRole):
		return "invalid_role"
	case errors.Is(err, ErrInvalidIdentity):
		return "invalid_identity"
	case errors.Is(err, ErrPrimaryOccupied):
		return "primary_occupied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPhysicalIO):
		return "physical_io"
	default:
		return "unknown"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "asset failure"
	}
	return strings.Join(parts, ": ")
}
