package cryptoutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateEventKey()
	require.NoError(t, err)
	cipher, err := NewTicketCipher(key)
	require.NoError(t, err)

	plaintext := []byte("event-id:ticket-number:hash")
	ivB64, ctB64, err := cipher.Encrypt(plaintext)
	require.NoError(t, err)

	out, err := cipher.Decrypt(ivB64, ctB64)
	require.NoError(t, err)
	assert.Equal(t, plaintext, out)
}

func TestNewTicketCipherRejectsWrongKeySize(t *testing.T) {
	_, err := NewTicketCipher([]byte("too short"))
	assert.Error(t, err)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	key, err := GenerateEventKey()
	require.NoError(t, err)
	cipher, err := NewTicketCipher(key)
	require.NoError(t, err)

	ivB64, ctB64, err := cipher.Encrypt([]byte("payload"))
	require.NoError(t, err)

	tampered := ctB64[:len(ctB64)-4] + "AAAA"
	_, err = cipher.Decrypt(ivB64, tampered)
	assert.Error(t, err)
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	key, err := GenerateEventKey()
	require.NoError(t, err)
	cipher, err := NewTicketCipher(key)
	require.NoError(t, err)

	_, err = cipher.Decrypt("not base64!!", "also not base64!!")
	assert.Error(t, err)

	_, err = cipher.Decrypt("", "")
	assert.Error(t, err)
}

func TestGenerateEventKeyIsUniqueAndCorrectLength(t *testing.T) {
	a, err := GenerateEventKey()
	require.NoError(t, err)
	b, err := GenerateEventKey()
	require.NoError(t, err)

	assert.Len(t, a, KeySize)
	assert.Len(t, b, KeySize)
	assert.NotEqual(t, a, b)
}

func TestSHA256HelpersAgree(t *testing.T) {
	data := []byte("principal-public-key-pem")
	assert.Equal(t, SHA256Hex(data), SHA256HexString(string(data)))

	rawDigest := SHA256Bytes(data)
	assert.Len(t, rawDigest, 32)
}
