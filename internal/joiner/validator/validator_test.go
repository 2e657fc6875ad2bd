package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/joiner"
	apperrors "github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/errors"
)

func validRequest() joiner.JoinRequest {
	return joiner.JoinRequest{
		LeftCollection: "people",
		LeftKey:        "id",
		LeftAttr:       "name",
		Tokenizer:      "qgram:3",
		Threshold:      0.8,
		Output:         "people_dups",
		LeftPrefix:     "l_",
		RightPrefix:    "r_",
	}
}

func fields(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	return verr.Fields
}

func TestValidSelfJoin(t *testing.T) {
	req := validRequest()
	assert.NoError(t, ValidateJoinRequest(&req))
}

func TestInnerJoinNeedsRightColumns(t *testing.T) {
	req := validRequest()
	req.RightCollection = "companies"
	f := fields(t, ValidateJoinRequest(&req))
	assert.Contains(t, f, "right_key")
	assert.Contains(t, f, "right_attr")

	req.RightKey, req.RightAttr = "id", "title"
	assert.NoError(t, ValidateJoinRequest(&req))
}

func TestSameCollectionOnBothSidesIsSelfJoin(t *testing.T) {
	req := validRequest()
	req.RightCollection = req.LeftCollection
	assert.NoError(t, ValidateJoinRequest(&req))
}

func TestCollectsEveryProblem(t *testing.T) {
	req := joiner.JoinRequest{Threshold: 1.5, Tokenizer: "soundex", LeftPrefix: "x", RightPrefix: "x"}
	err := ValidateJoinRequest(&req)
	f := fields(t, err)
	for _, field := range []string{"left_collection", "left_key", "left_attr", "output", "threshold", "tokenizer", "right_prefix"} {
		assert.Contains(t, f, field)
	}
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Equal(t, 400, apperrors.HTTPStatusCode(err))
}

func TestThresholdBounds(t *testing.T) {
	for _, th := range []float64{-0.1, 0, 1.0001} {
		req := validRequest()
		req.Threshold = th
		assert.Contains(t, fields(t, ValidateJoinRequest(&req)), "threshold")
	}
	req := validRequest()
	req.Threshold = 1
	assert.NoError(t, ValidateJoinRequest(&req))
}

func TestOutputMustNotOverwriteInput(t *testing.T) {
	req := validRequest()
	req.Output = "people"
	assert.Contains(t, fields(t, ValidateJoinRequest(&req)), "output")
}

func TestIdentifierLength(t *testing.T) {
	req := validRequest()
	req.LeftCollection = "public." + strings.Repeat("a", 63)
	assert.NoError(t, ValidateJoinRequest(&req))

	req.LeftCollection = strings.Repeat("a", 64)
	assert.Contains(t, fields(t, ValidateJoinRequest(&req)), "left_collection")
}

func TestErrorMessageIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"b": "two", "a": "one"}}
	assert.Equal(t, "a: one; b: two", err.Error())
}

func TestValidateEvaluateRequest(t *testing.T) {
	req := joiner.EvaluateRequest{Truth: "gold", TruthLeft: "a", TruthRight: "b", Computed: "out", ComputedLeft: "l_id", ComputedRight: "r_id"}
	assert.NoError(t, ValidateEvaluateRequest(&req))

	req.ComputedRight = ""
	assert.Contains(t, fields(t, ValidateEvaluateRequest(&req)), "computed_right")
}
