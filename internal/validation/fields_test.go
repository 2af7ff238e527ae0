package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFieldValidatorRegistersTags(t *testing.T) {
	assert.NotPanics(t, func() { newFieldValidator() })
}

func TestUUIDTag(t *testing.T) {
	type idHolder struct {
		ID string `validate:"required,uuid"`
	}

	tests := []struct {
		id    string
		valid bool
	}{
		{"7f1e2c7a-3c55-4a57-9c8e-5f1f0d6d1a10", true},
		{"7F1E2C7A-3C55-4A57-9C8E-5F1F0D6D1A10", true},
		{"7f1e2c7a3c554a579c8e5f1f0d6d1a10", false},
		{"7f1e2c7a-3c55-4a57-9c8e-5f1f0d6d1a1", false},
		{"7g1e2c7a-3c55-4a57-9c8e-5f1f0d6d1a10", false},
	}

	for _, tt := range tests {
		err := validate.Struct(idHolder{ID: tt.id})
		assert.Equal(t, tt.valid, err == nil, tt.id)
	}
}
