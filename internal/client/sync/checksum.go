package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// checksumLen is the number of hex chars kept from the SHA-256 digest. The
// server computes the same prefix; the two must agree for checksum-skip to
// work.
const checksumLen = 16

// Checksum returns the 16-hex-char digest of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:checksumLen]
}

// ChecksumFile returns the 16-hex-char digest of the file at path.
func ChecksumFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("checksum open %s: %w", path, err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("checksum read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil))[:checksumLen], nil
}
