package keys

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

const minRSABits = 2048

var (
	ErrEmptyKey       = errors.New("public key is empty")
	ErrNotPEM         = errors.New("public key is not PEM encoded")
	ErrWrongBlockType = errors.New("PEM block must be of type PUBLIC KEY")
	ErrUnsupportedKey = errors.New("public key algorithm is not supported")
	ErrWeakKey        = errors.New("RSA public key must be at least 2048 bits")
)

// ValidatePublicKey checks that pemKey is a single SubjectPublicKeyInfo block holding an
// RSA or EC key and returns the normalized PEM encoding.
func ValidatePublicKey(pemKey string) (string, error) {
	trimmed := strings.TrimSpace(pemKey)
	if trimmed == "" {
		return "", ErrEmptyKey
	}

	block, rest := pem.Decode([]byte(trimmed))
	if block == nil {
		return "", ErrNotPEM
	}
	if len(strings.TrimSpace(string(rest))) > 0 {
		return "", fmt.Errorf("%w: unexpected data after PEM block", ErrNotPEM)
	}
	if block.Type != "PUBLIC KEY" {
		return "", ErrWrongBlockType
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotPEM, err)
	}

	switch k := parsed.(type) {
	case *rsa.PublicKey:
		if k.N.BitLen() < minRSABits {
			return "", ErrWeakKey
		}
	case *ecdsa.PublicKey:
	default:
		return "", ErrUnsupportedKey
	}

	return string(pem.EncodeToMemory(block)), nil
}
