package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
)

type sample struct {
	StudentID string `json:"student_id" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
	Quarter   int    `json:"quarter" validate:"min=1,max=4"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := Struct("billing", "Record", sample{Email: "nope", Quarter: 5})
	require.Error(t, err)

	assert.True(t, shared.IsValidation(err))
	assert.Contains(t, err.Error(), "student_id is required")
	assert.Contains(t, err.Error(), "email must be a valid email")
	assert.Contains(t, err.Error(), "quarter must be at most 4")
}

func TestStructAcceptsValidInput(t *testing.T) {
	assert.NoError(t, Struct("billing", "Record", sample{StudentID: "s1", Quarter: 2}))
}
