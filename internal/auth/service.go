package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/go-faster/errors"
)

// ServiceTokens authenticates internal workers, such as the invoice
// generator, by the HMAC-SHA256 of their token. Only hashes are configured.
type ServiceTokens struct {
	pepper []byte
	hashes [][]byte
}

// NewServiceTokens returns a checker for the given hex-encoded hashes.
func NewServiceTokens(pepper []byte, hexHashes []string) (*ServiceTokens, error) {
	hashes := make([][]byte, 0, len(hexHashes))
	for _, h := range hexHashes {
		b, err := hex.DecodeString(h)
		if err != nil {
			return nil, errors.Wrap(err, "decode service token hash")
		}
		hashes = append(hashes, b)
	}
	return &ServiceTokens{pepper: pepper, hashes: hashes}, nil
}

// Hash returns the hex-encoded HMAC of token, the value to configure.
func (s *ServiceTokens) Hash(token string) string {
	return hex.EncodeToString(s.mac(token))
}

// Check returns ErrUnauthorized unless token matches a configured hash.
func (s *ServiceTokens) Check(token string) error {
	if token == "" {
		return ErrUnauthorized
	}
	sum := s.mac(token)

	match := 0
	for _, h := range s.hashes {
		match |= subtle.ConstantTimeCompare(sum, h)
	}
	if match != 1 {
		return ErrUnauthorized
	}
	return nil
}

func (s *ServiceTokens) mac(token string) []byte {
	m := hmac.New(sha256.New, s.pepper)
	m.Write([]byte(token))
	return m.Sum(nil)
}
