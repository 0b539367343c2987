// Package idhash computes deterministic, base58-encoded content digests.
package idhash

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/mr-tron/base58"
)

// FileFingerprint computes a deterministic fingerprint of a file's content.
// Formula: base58(SHA256(content)). Renaming a file keeps its fingerprint.
func FileFingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return base58.Encode(h.Sum(nil)), nil
}

// BytesFingerprint is FileFingerprint for in-memory content.
func BytesFingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return base58.Encode(sum[:])
}
