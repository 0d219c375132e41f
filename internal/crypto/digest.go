package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DigestOp selects a hash or MAC operation.
type DigestOp uint8

const (
	DigestSHA256 DigestOp = iota + 1
	DigestHMACSHA256
)

func (op DigestOp) String() string {
	switch op {
	case DigestSHA256:
		return "sha256"
	case DigestHMACSHA256:
		return "hmac-sha256"
	default:
		return fmt.Sprintf("digest(%d)", uint8(op))
	}
}

// Sum applies op to data. key is ignored by unkeyed operations.
func (op DigestOp) Sum(data, key []byte) ([]byte, error) {
	switch op {
	case DigestSHA256:
		sum := sha256.Sum256(data)
		return sum[:], nil
	case DigestHMACSHA256:
		mac := hmac.New(sha256.New, key)
		mac.Write(data)
		return mac.Sum(nil), nil
	default:
		return nil, fmt.Errorf("crypto: unknown digest op %s", op)
	}
}

// GenerateHash returns the hex SHA-256 digest of data.
func GenerateHash(data []byte) string {
	sum, _ := DigestSHA256.Sum(data, nil)
	return hex.EncodeToString(sum)
}

// GenerateMAC returns the hex HMAC-SHA256 of data under key.
func GenerateMAC(data, key []byte) string {
	sum, _ := DigestHMACSHA256.Sum(data, key)
	return hex.EncodeToString(sum)
}

// VerifyMAC reports whether mac is the hex HMAC-SHA256 of data under key.
// The comparison runs in constant time over the full tag.
func VerifyMAC(data, key []byte, mac string) bool {
	want, _ := DigestHMACSHA256.Sum(data, key)
	got, err := hex.DecodeString(mac)
	if err != nil {
		got = make([]byte, len(want))
	}
	return hmac.Equal(got, want) && err == nil
}
