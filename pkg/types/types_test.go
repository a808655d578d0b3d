package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookKind(t *testing.T) {
	assert.Equal(t, HookValidation, HookKindFromBool(true))
	assert.Equal(t, HookExecution, HookKindFromBool(false))
	assert.True(t, HookValidation.IsValidation())
	assert.False(t, HookExecution.IsValidation())
	assert.Equal(t, "validation", HookValidation.String())
	assert.Equal(t, "execution", HookExecution.String())
}

func TestR1PublicKeyFromBytes(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		wantErr bool
	}{
		{name: "valid length", input: make([]byte, 64)},
		{name: "too short", input: make([]byte, 63), wantErr: true},
		{name: "sec1 prefixed", input: make([]byte, 65), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := R1PublicKeyFromBytes(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestR1PublicKeyJSON(t *testing.T) {
	var key R1PublicKey
	for i := range key {
		key[i] = byte(i)
	}

	raw, err := json.Marshal(key)
	require.NoError(t, err)

	var decoded R1PublicKey
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, key, decoded)

	assert.Error(t, json.Unmarshal([]byte(`"0x1234"`), &decoded))
}
