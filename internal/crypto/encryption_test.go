package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealAndOpen(t *testing.T) {
	key, err := GenerateMasterKey()
	require.NoError(t, err)

	svc, err := NewEncryptionService(key)
	require.NoError(t, err)

	sealed, err := svc.SealString("user-1", "sk-or-secret")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "sk-or-secret")

	opened, err := svc.OpenString("user-1", sealed)
	require.NoError(t, err)
	assert.Equal(t, "sk-or-secret", opened)

	// Keys are derived per user, so another user cannot open the value
	_, err = svc.OpenString("user-2", sealed)
	assert.Error(t, err)
}

func TestNewEncryptionServiceRejectsBadKeys(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{name: "empty", key: ""},
		{name: "not hex", key: "zz"},
		{name: "too short", key: "abcd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEncryptionService(tt.key)
			assert.Error(t, err)
		})
	}
}

func TestEmptySecretRoundTrip(t *testing.T) {
	key, _ := GenerateMasterKey()
	svc, _ := NewEncryptionService(key)

	sealed, err := svc.SealString("user-1", "")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	opened, err := svc.OpenString("user-1", "")
	require.NoError(t, err)
	assert.Empty(t, opened)
}
