// Package validator checks join and evaluation requests before they reach
// the engine and reports every offending field at once.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/joiner"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/errors"
)

// maxIdentifierLength is PostgreSQL's NAMEDATALEN-1 limit, applied per part
// of a schema-qualified name.
const maxIdentifierLength = 63

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return apperrors.ErrInvalidInput }

// ValidateJoinRequest checks a join request whose defaults have already been
// applied.
func ValidateJoinRequest(req *joiner.JoinRequest) error {
	errs := make(map[string]string)

	identifier(errs, "left_collection", req.LeftCollection, true)
	identifier(errs, "left_key", req.LeftKey, true)
	identifier(errs, "left_attr", req.LeftAttr, true)
	identifier(errs, "output", req.Output, true)

	inner := req.RightCollection != "" && req.RightCollection != req.LeftCollection
	identifier(errs, "right_collection", req.RightCollection, false)
	identifier(errs, "right_key", req.RightKey, inner)
	identifier(errs, "right_attr", req.RightAttr, inner)

	if req.Output != "" && (req.Output == req.LeftCollection || req.Output == req.RightCollection) {
		errs["output"] = "output must not overwrite an input collection"
	}
	if req.Threshold <= 0 || req.Threshold > 1 {
		errs["threshold"] = fmt.Sprintf("threshold must be in (0, 1], got %g", req.Threshold)
	}
	if _, err := tokenizer.Parse(req.Tokenizer); err != nil {
		errs["tokenizer"] = err.Error()
	}
	if req.LeftPrefix == req.RightPrefix {
		errs["right_prefix"] = "left and right column prefixes must differ"
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateEvaluateRequest checks that both relations and all four key
// columns are named.
func ValidateEvaluateRequest(req *joiner.EvaluateRequest) error {
	errs := make(map[string]string)
	identifier(errs, "truth", req.Truth, true)
	identifier(errs, "truth_left", req.TruthLeft, true)
	identifier(errs, "truth_right", req.TruthRight, true)
	identifier(errs, "computed", req.Computed, true)
	identifier(errs, "computed_left", req.ComputedLeft, true)
	identifier(errs, "computed_right", req.ComputedRight, true)
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func identifier(errs map[string]string, field, value string, required bool) {
	if strings.TrimSpace(value) == "" {
		if required {
			errs[field] = field + " is required"
		}
		return
	}
	if strings.ContainsRune(value, 0) {
		errs[field] = field + " must not contain NUL bytes"
		return
	}
	for _, part := range strings.SplitN(value, ".", 2) {
		if len(part) > maxIdentifierLength {
			errs[field] = fmt.Sprintf("%s must be at most %d bytes per name part", field, maxIdentifierLength)
			return
		}
	}
}
