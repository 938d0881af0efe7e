// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package validate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gapgens/gapgens/internal/platform/apperr"
	"github.com/gapgens/gapgens/internal/platform/validate"
)

/*
TestValidator_Required tests the mandatory field validation logic.
*/
func TestValidator_Required(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		value    string
		hasError bool
	}{
		{"valid_string", "device_id", "laptop-1", false},
		{"empty_string", "device_id", "", true},
		{"whitespace_only", "device_id", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Required(tt.field, tt.value)

			if tt.hasError {
				assert.True(t, v.HasErrors())
				err := v.Err()
				require.NotNil(t, err)

				ae := apperr.As(err)
				require.NotNil(t, ae)
				assert.Equal(t, "VALIDATION_ERROR", ae.Code)
				assert.Equal(t, tt.field, ae.Details[0].Field)
			} else {
				assert.False(t, v.HasErrors())
				assert.Nil(t, v.Err())
			}
		})
	}
}

/*
TestValidator_Identifier checks the identifier shape rule.
*/
func TestValidator_Identifier(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		isValid bool
	}{
		{"empty_is_allowed", "", true},
		{"uuid", "0190a6f4-7b2c-7c3e-9d1a-2b3c4d5e6f70", true},
		{"at_limit", strings.Repeat("a", validate.MaxIdentifierLength), true},
		{"too_long", strings.Repeat("a", validate.MaxIdentifierLength+1), false},
		{"newline", "device\n1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Identifier("device_id", tt.value)
			assert.Equal(t, !tt.isValid, v.HasErrors())
		})
	}
}

func TestValidator_ChainCollectsAllFailures(t *testing.T) {
	v := &validate.Validator{}
	v.Required("user_id", "").
		MaxLen("device_id", "abcdef", 3).
		Custom("device_id", true, "Must differ")

	ae := apperr.As(v.Err())
	require.NotNil(t, ae)
	assert.Len(t, ae.Details, 3)
	assert.Equal(t, "Maximum 3 characters", ae.Details[1].Message)
}
