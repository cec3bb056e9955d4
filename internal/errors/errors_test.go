package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder_BuildCarriesMetadata(t *testing.T) {
	base := NewStd("model artifact corrupt")
	err := New(base).
		Component("risk").
		Category(CategoryModelLoad).
		Context("artifact_path", "/models/v1.yaml").
		SiteContext("site-001").
		Build()

	var enhanced *EnhancedError
	require.True(t, As(err, &enhanced))

	assert.Equal(t, "model artifact corrupt", enhanced.Error())
	assert.Equal(t, "risk", enhanced.GetComponent())
	assert.Equal(t, string(CategoryModelLoad), enhanced.GetCategory())

	ctx := enhanced.GetContext()
	assert.Equal(t, "/models/v1.yaml", ctx["artifact_path"])
	assert.Equal(t, "site-001", ctx["site_id"])
	assert.False(t, enhanced.GetTimestamp().IsZero())
}

func TestNewf_WrapsCause(t *testing.T) {
	cause := NewStd("disk full")
	err := Newf("failed to persist verdict: %w", cause).
		Category(CategoryDatabase).
		Build()

	assert.True(t, Is(err, cause))
	assert.True(t, IsCategory(err, CategoryDatabase))
	assert.False(t, IsCategory(err, CategoryValidation))
}

func TestIsCategory_WrappedError(t *testing.T) {
	inner := Newf("no profile").Category(CategoryNotFound).Build()
	outer := fmt.Errorf("evaluating site: %w", inner)

	assert.True(t, IsCategory(outer, CategoryNotFound))
}

func TestIsRecoverable(t *testing.T) {
	testCases := []struct {
		name     string
		category ErrorCategory
		want     bool
	}{
		{"model_unavailable", CategoryModelUnavailable, true},
		{"inference_timeout", CategoryInferenceTimeout, true},
		{"inference_failure", CategoryInference, true},
		{"model_load", CategoryModelLoad, true},
		{"model_init", CategoryModelInit, true},
		{"validation_is_not_recoverable", CategoryValidation, false},
		{"insufficient_data_is_not_recoverable", CategoryInsufficientData, false},
		{"database_is_not_recoverable", CategoryDatabase, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Newf("boom").Category(tc.category).Build()
			assert.Equal(t, tc.want, IsRecoverable(err))
		})
	}

	assert.False(t, IsRecoverable(nil))
	assert.False(t, IsRecoverable(NewStd("plain error")))
}

func TestValidationError(t *testing.T) {
	err := ValidationError("water level must be non-negative")
	assert.True(t, IsCategory(err, CategoryValidation))
	assert.Equal(t, "water level must be non-negative", err.Error())
}

func TestEnhancedError_IsMatchesCategory(t *testing.T) {
	a := Newf("first").Category(CategoryTimeout).Build()
	b := Newf("second").Category(CategoryTimeout).Build()

	assert.True(t, Is(a, b))
}
