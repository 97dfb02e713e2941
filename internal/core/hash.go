package core

import (
	"crypto/md5"
	"crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Hash describes the expected digest of an artifact.
// The zero value means the provider publishes no hash and nothing is verified.
type Hash struct {
	Algorithm string `toml:"algorithm"`
	Value     string `toml:"value"`
}

// IsZero reports whether h carries no digest.
func (h Hash) IsZero() bool {
	return h.Value == ""
}

func (h Hash) String() string {
	if h.IsZero() {
		return "none"
	}
	return h.Algorithm + ":" + h.Value
}

// ParseHash accepts "algorithm:hex". A bare 64 character value is taken as sha256.
func ParseHash(s string) (Hash, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Hash{}, nil
	}
	alg, value, ok := strings.Cut(s, ":")
	if !ok {
		if len(s) == 64 {
			return Hash{Algorithm: "sha256", Value: strings.ToLower(s)}, nil
		}
		return Hash{}, fmt.Errorf("hash %q: expected algorithm:value", s)
	}
	h := Hash{Algorithm: strings.ToLower(alg), Value: strings.ToLower(value)}
	if _, err := h.Verifier(); err != nil {
		return Hash{}, err
	}
	return h, nil
}

// Verifier accumulates written bytes and checks them against a Hash.
type Verifier interface {
	io.Writer
	Verified() bool
	Actual() string
}

// Verifier returns a Verifier for h. sha256 and sha512 go through
// OCI digests; sha1 and md5 are what older provider APIs publish.
func (h Hash) Verifier() (Verifier, error) {
	switch h.Algorithm {
	case "sha256", "sha384", "sha512":
		d := digest.NewDigestFromEncoded(digest.Algorithm(h.Algorithm), h.Value)
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("hash %s: %w", h, err)
		}
		return &digestVerifier{expected: d, digester: d.Algorithm().Digester()}, nil
	case "sha1":
		return &stdVerifier{expected: h.Value, h: sha1.New()}, nil
	case "md5":
		return &stdVerifier{expected: h.Value, h: md5.New()}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", h.Algorithm)
	}
}

type digestVerifier struct {
	expected digest.Digest
	digester digest.Digester
}

func (v *digestVerifier) Write(p []byte) (int, error) {
	return v.digester.Hash().Write(p)
}

func (v *digestVerifier) Verified() bool {
	return v.digester.Digest() == v.expected
}

func (v *digestVerifier) Actual() string {
	return v.digester.Digest().Encoded()
}

type stdVerifier struct {
	expected string
	h        hash.Hash
}

func (v *stdVerifier) Write(p []byte) (int, error) {
	return v.h.Write(p)
}

func (v *stdVerifier) Verified() bool {
	return v.Actual() == strings.ToLower(v.expected)
}

func (v *stdVerifier) Actual() string {
	return hex.EncodeToString(v.h.Sum(nil))
}
