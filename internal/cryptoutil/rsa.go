// Package cryptoutil implements the three cryptographic primitives ZETA's
// security model is built on: RSA-PSS(SHA-256) signatures over canonical
// JSON, AES-256-CBC+PKCS#7 ticket sealing, and SHA-256 hashing. Adapted from
// the teacher's RSA key-pair type (crypto/keys/rs256.go), generalized from
// RS256/PKCS#1v1.5 to RSA-PSS per spec.md §4.3, and from an opaque key ID to
// a PEM public key, since ZETA identifies principals by their PEM key, not a
// derived ID.
package cryptoutil

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	"github.com/sage-x-project/zeta/internal/canonical"
)

// DefaultKeyBits is the RSA modulus size used when generating a new
// principal keypair; spec.md §4.3 allows 1024/2048 but defaults to 4096.
const DefaultKeyBits = 4096

// Signer wraps an RSA key pair and signs/verifies canonical JSON with
// RSA-PSS(SHA-256), per spec.md §4.2/§4.3.
type Signer struct {
	private *rsa.PrivateKey
	public  *rsa.PublicKey
}

// GenerateSigner creates a new RSA key pair of the given modulus size.
// bits <= 0 selects DefaultKeyBits.
func GenerateSigner(bits int) (*Signer, error) {
	if bits <= 0 {
		bits = DefaultKeyBits
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: generate key: %w", err)
	}
	return &Signer{private: priv, public: &priv.PublicKey}, nil
}

// NewSignerFromPrivatePEM loads a signer from a PKCS#1 or PKCS#8 PEM-encoded
// private key, such as one written by cmd/zeta-ctl keygen.
func NewSignerFromPrivatePEM(pemBytes []byte) (*Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("cryptoutil: no PEM block found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return &Signer{private: key, public: &key.PublicKey}, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: parse private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("cryptoutil: private key is not RSA")
	}
	return &Signer{private: rsaKey, public: &rsaKey.PublicKey}, nil
}

// PrivatePEM encodes the private key as a PKCS#1 PEM block.
func (s *Signer) PrivatePEM() []byte {
	der := x509.MarshalPKCS1PrivateKey(s.private)
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})
}

// PublicPEM encodes the public key as a PKIX PEM block. This is the string
// form used as a principal's identity throughout the API (spec.md §3's
// `public_key` fields).
func (s *Signer) PublicPEM() (string, error) {
	return PublicKeyToPEM(s.public)
}

// PublicKeyToPEM encodes an *rsa.PublicKey as a PKIX PEM string.
func PublicKeyToPEM(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("cryptoutil: marshal public key: %w", err)
	}
	block := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return string(block), nil
}

// PublicKeyFromPEM parses a PKIX PEM-encoded RSA public key string.
func PublicKeyFromPEM(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, fmt.Errorf("cryptoutil: no PEM block found")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: parse public key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("cryptoutil: public key is not RSA")
	}
	return rsaKey, nil
}

// Sign canonicalizes v and signs it with RSA-PSS(SHA-256), returning the
// base64 (standard encoding) signature used in envelope.Auth.Signature.
func (s *Signer) Sign(v any) (string, error) {
	digest, err := digestOf(v)
	if err != nil {
		return "", err
	}
	sig, err := rsa.SignPSS(rand.Reader, s.private, crypto.SHA256, digest, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return "", fmt.Errorf("cryptoutil: sign: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a base64 RSA-PSS(SHA-256) signature of v against a PEM
// public key. It never returns an error for a bad signature — only false —
// per spec.md §4.3 ("never throws on bad signature").
func Verify(publicKeyPEM string, v any, signatureB64 string) bool {
	pub, err := PublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false
	}
	digest, err := digestOf(v)
	if err != nil {
		return false
	}
	err = rsa.VerifyPSS(pub, crypto.SHA256, digest, sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       crypto.SHA256,
	})
	return err == nil
}

func digestOf(v any) ([]byte, error) {
	b, err := canonical.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: canonicalize: %w", err)
	}
	sum := sha256.Sum256(b)
	return sum[:], nil
}
