package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-json"
)

// Fingerprint hashes its parts into a short hex string. Parts are separated
// so ("ab", "c") and ("a", "bc") differ.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strconv.Itoa(len(p))))
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// FingerprintValue hashes the JSON encoding of v.
func FingerprintValue(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint value: %w", err)
	}
	return Fingerprint(string(data)), nil
}

// FilesFingerprint hashes path, size and modification time of each file, so
// a replaced extract invalidates everything built from it.
func FilesFingerprint(paths []string) (string, error) {
	parts := make([]string, 0, 3*len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", p, err)
		}
		parts = append(parts, p, strconv.FormatInt(info.Size(), 10), strconv.FormatInt(info.ModTime().UnixNano(), 10))
	}
	return Fingerprint(parts...), nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	return nil
}
