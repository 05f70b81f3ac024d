package cryptoutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signedPayload struct {
	Nonce   string `json:"nonce"`
	Content string `json:"content"`
}

func TestSignAndVerify(t *testing.T) {
	signer, err := GenerateSigner(2048)
	require.NoError(t, err)
	pub, err := signer.PublicPEM()
	require.NoError(t, err)

	payload := signedPayload{Nonce: "abc", Content: "hello"}

	sig, err := signer.Sign(payload)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)

	assert.True(t, Verify(pub, payload, sig))
}

func TestVerifyRejectsBitFlippedSignature(t *testing.T) {
	signer, err := GenerateSigner(2048)
	require.NoError(t, err)
	pub, err := signer.PublicPEM()
	require.NoError(t, err)

	payload := signedPayload{Nonce: "abc", Content: "hello"}
	sig, err := signer.Sign(payload)
	require.NoError(t, err)

	flipped := []byte(sig)
	flipped[0] ^= 0xFF
	assert.False(t, Verify(pub, payload, string(flipped)))
}

func TestVerifyRejectsMutatedPayload(t *testing.T) {
	signer, err := GenerateSigner(2048)
	require.NoError(t, err)
	pub, err := signer.PublicPEM()
	require.NoError(t, err)

	payload := signedPayload{Nonce: "abc", Content: "hello"}
	sig, err := signer.Sign(payload)
	require.NoError(t, err)

	mutated := signedPayload{Nonce: "abc", Content: "goodbye"}
	assert.False(t, Verify(pub, mutated, sig))
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	signerA, err := GenerateSigner(2048)
	require.NoError(t, err)
	signerB, err := GenerateSigner(2048)
	require.NoError(t, err)
	pubB, err := signerB.PublicPEM()
	require.NoError(t, err)

	payload := signedPayload{Nonce: "abc", Content: "hello"}
	sig, err := signerA.Sign(payload)
	require.NoError(t, err)

	assert.False(t, Verify(pubB, payload, sig))
}

// TestVerifyNeverErrors covers spec.md §8 invariant 8 and §4.3's "never
// throws on bad signature": Verify degrades to false for any malformed
// input instead of panicking or surfacing an error type.
func TestVerifyNeverErrors(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.False(t, Verify("not a pem", signedPayload{}, "not base64"))
		assert.False(t, Verify("", signedPayload{}, ""))
	})
}

func TestPrivatePEMRoundTrips(t *testing.T) {
	signer, err := GenerateSigner(2048)
	require.NoError(t, err)

	loaded, err := NewSignerFromPrivatePEM(signer.PrivatePEM())
	require.NoError(t, err)

	pub, err := signer.PublicPEM()
	require.NoError(t, err)
	loadedPub, err := loaded.PublicPEM()
	require.NoError(t, err)
	assert.Equal(t, pub, loadedPub)
}
