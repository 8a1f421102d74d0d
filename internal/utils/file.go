package utils

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// MD5Prefix is prepended to every content hash exchanged with the server.
const MD5Prefix = "md5:"

// FileHash returns the prefixed MD5 hash of a file, e.g. "md5:9e107d9d372bb6826bd81d3542a419d6".
func FileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	return ReaderHash(file)
}

// ReaderHash returns the prefixed MD5 hash of everything read from r.
func ReaderHash(r io.Reader) (string, error) {
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return FormatHash(h), nil
}

// NewHasher returns the hash used for content identity. Pair it with FormatHash.
func NewHasher() hash.Hash {
	return md5.New()
}

// FormatHash renders the sum of h in the prefixed wire form.
func FormatHash(h hash.Hash) string {
	return MD5Prefix + hex.EncodeToString(h.Sum(nil))
}

// BytesHash is FileHash for in-memory content.
func BytesHash(b []byte) string {
	sum := md5.Sum(b)
	return MD5Prefix + hex.EncodeToString(sum[:])
}

// SameHash compares content hashes, tolerating a missing "md5:" prefix and hex case
func SameHash(a, b string) bool {
	a = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(a)), MD5Prefix)
	b = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(b)), MD5Prefix)
	return a != "" && a == b
}
