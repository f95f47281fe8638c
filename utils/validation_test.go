package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDocument struct {
	Source       string `json:"source" validate:"required"`
	MinRoleLevel int    `json:"min_role_level" validate:"gte=0"`
}

type testRequest struct {
	Query    string       `json:"query" validate:"required,max=10"`
	Mode     string       `json:"mode,omitempty" validate:"omitempty,oneof=fast full"`
	Document testDocument `json:"document"`
	Internal string       `validate:"required"`
}

func validRequest() testRequest {
	return testRequest{
		Query:    "payroll",
		Document: testDocument{Source: "a.md"},
		Internal: "x",
	}
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		s := validRequest()
		assert.NoError(t, ValidateStruct(&s))
	})

	t.Run("missing required field uses json name", func(t *testing.T) {
		s := validRequest()
		s.Query = ""

		err := ValidateStruct(&s)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Equal(t, "query is required", fields["query"])
	})

	t.Run("too long", func(t *testing.T) {
		s := validRequest()
		s.Query = "a much longer question"

		fields := GetValidationFields(ValidateStruct(&s))
		assert.Equal(t, "query must be at most 10", fields["query"])
	})

	t.Run("oneof", func(t *testing.T) {
		s := validRequest()
		s.Mode = "slow"

		fields := GetValidationFields(ValidateStruct(&s))
		assert.Equal(t, "mode must be one of: fast full", fields["mode"])
	})

	t.Run("nested fields are keyed by path", func(t *testing.T) {
		s := validRequest()
		s.Document = testDocument{MinRoleLevel: -1}

		fields := GetValidationFields(ValidateStruct(&s))
		assert.Equal(t, "document.source is required", fields["document.source"])
		assert.Equal(t, "document.min_role_level must be greater than or equal to 0", fields["document.min_role_level"])
	})

	t.Run("field without json tag keeps its Go name", func(t *testing.T) {
		s := validRequest()
		s.Internal = ""

		fields := GetValidationFields(ValidateStruct(&s))
		assert.Contains(t, fields, "Internal")
	})
}

func TestNewValidationError(t *testing.T) {
	s := testRequest{}

	err := ValidateStruct(&s)
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)

	assert.Equal(t, "Validation failed", validationErr.Message)
	assert.Len(t, validationErr.Fields, 3)
	assert.Contains(t, validationErr.Fields, "query")
	assert.Contains(t, validationErr.Fields, "document.source")
	assert.Contains(t, validationErr.Fields, "Internal")
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Message: "Test validation error",
		Fields: map[string]string{
			"field1": "error1",
		},
	}

	assert.Equal(t, "Test validation error", err.Error())
}

func TestIsValidationError(t *testing.T) {
	t.Run("is validation error", func(t *testing.T) {
		err := &ValidationError{
			Message: "test",
			Fields:  map[string]string{},
		}

		assert.True(t, IsValidationError(err))
	})

	t.Run("is not validation error", func(t *testing.T) {
		assert.False(t, IsValidationError(assert.AnError))
	})
}

func TestGetValidationFields(t *testing.T) {
	t.Run("gets fields from validation error", func(t *testing.T) {
		fields := map[string]string{
			"field1": "error1",
			"field2": "error2",
		}
		err := &ValidationError{
			Message: "test",
			Fields:  fields,
		}

		assert.Equal(t, fields, GetValidationFields(err))
	})

	t.Run("returns nil for non-validation error", func(t *testing.T) {
		assert.Nil(t, GetValidationFields(assert.AnError))
	})
}
