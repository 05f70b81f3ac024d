package postgres

import "github.com/sage-x-project/zeta/internal/cryptoutil"

// cryptoHash hashes a PEM public key for use as a row lookup key, so
// owner/permission rows are ever addressed by key digest rather than by
// the key material itself.
func cryptoHash(publicKeyPEM string) []byte {
	return cryptoutil.SHA256Bytes([]byte(publicKeyPEM))
}
