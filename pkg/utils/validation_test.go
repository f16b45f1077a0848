package utils

import (
	"testing"

	pkgerrors "inventory/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `validate:"required"`
	Step  int    `validate:"min=1"`
	Store string `validate:"oneof=memory dynamodb"`
}

func TestValidateStruct(t *testing.T) {
	assert.NoError(t, ValidateStruct(sample{Name: "a", Step: 1, Store: "memory"}))

	err := ValidateStruct(sample{Step: 0, Store: "redis"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "step must be at least 1")
	assert.Contains(t, err.Error(), "store must be one of: memory dynamodb")
}
