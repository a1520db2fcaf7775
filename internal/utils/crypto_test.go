package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptRoundTrip(t *testing.T) {
	enc, err := Encrypt("sk-live-123", "server-secret")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(enc))
	assert.NotContains(t, enc, "sk-live-123")

	again, err := Encrypt("sk-live-123", "server-secret")
	require.NoError(t, err)
	assert.NotEqual(t, enc, again, "nonce must differ per call")

	plain, err := Decrypt(enc, "server-secret")
	require.NoError(t, err)
	assert.Equal(t, "sk-live-123", plain)
}

func TestDecryptWrongKeyAndPlaintext(t *testing.T) {
	enc, err := Encrypt("sk-live-123", "server-secret")
	require.NoError(t, err)

	_, err = Decrypt(enc, "rotated-secret")
	assert.ErrorIs(t, err, ErrUndecryptable)

	_, err = Decrypt(secretPrefix+"%%%", "server-secret")
	assert.ErrorIs(t, err, ErrUndecryptable)

	plain, err := Decrypt("not-encrypted", "server-secret")
	require.NoError(t, err)
	assert.Equal(t, "not-encrypted", plain)

	_, err = Encrypt("x", "")
	assert.Error(t, err)
}
