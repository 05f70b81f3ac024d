package cryptoutil

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// KeySize is the AES-256 key length in bytes (spec.md §3: "random 256-bit
// symmetric key").
const KeySize = 32

// ivSize is the AES block size; spec.md §6 fixes the ticket IV at 16 bytes.
const ivSize = aes.BlockSize

// TicketCipher seals and opens ticket plaintexts with AES-256-CBC+PKCS#7,
// per spec.md §4.3/§4.7. One instance binds a single event key; a fresh IV
// is drawn for every Encrypt call and returned alongside the ciphertext, as
// the ticket wire format carries the IV out-of-band (spec.md §6 grammar:
// `B64_IV "-" B64_CIPHERTEXT`).
//
// AES-CBC has no built-in integrity check; the ticket package layers a
// SHA-256 hash inside the plaintext and requires it to match after
// decryption (spec.md §4.3), so ciphertext tampering surfaces as a single
// vague "ticket verification failed" error rather than a padding-oracle
// leak.
type TicketCipher struct {
	key []byte
}

// NewTicketCipher binds a 32-byte AES-256 key.
func NewTicketCipher(key []byte) (*TicketCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("cryptoutil: key must be %d bytes, got %d", KeySize, len(key))
	}
	return &TicketCipher{key: key}, nil
}

// GenerateEventKey returns a fresh random 256-bit symmetric key.
func GenerateEventKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("cryptoutil: generate event key: %w", err)
	}
	return key, nil
}

// Encrypt pads plaintext with PKCS#7, encrypts it under a fresh random IV,
// and returns (base64 IV, base64 ciphertext).
func (c *TicketCipher) Encrypt(plaintext []byte) (ivB64, ciphertextB64 string, err error) {
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", "", fmt.Errorf("cryptoutil: generate iv: %w", err)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", "", fmt.Errorf("cryptoutil: new cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString(iv), base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Any malformed input — bad base64, wrong IV
// length, bad padding — returns a generic error; callers fold this into the
// same opaque "ticket verification failed" message as a hash mismatch.
func (c *TicketCipher) Decrypt(ivB64, ciphertextB64 string) ([]byte, error) {
	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil || len(iv) != ivSize {
		return nil, fmt.Errorf("cryptoutil: bad iv")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: bad ciphertext encoding")
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("cryptoutil: ciphertext not block-aligned")
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: new cipher: %w", err)
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)

	return pkcs7Unpad(out)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(data, padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	n := len(data)
	if n == 0 {
		return nil, fmt.Errorf("cryptoutil: empty data")
	}
	padLen := int(data[n-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > n {
		return nil, fmt.Errorf("cryptoutil: bad padding")
	}
	for _, b := range data[n-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("cryptoutil: bad padding")
		}
	}
	return data[:n-padLen], nil
}
