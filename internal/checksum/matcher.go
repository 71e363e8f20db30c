package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
)

// Fingerprint is the lowercase hex SHA-256 of the uploaded bytes. It only
// identifies re-submitted files; it is not a tamper check.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintReader hashes a stream and reports how many bytes it read.
func FingerprintReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// ChecksumMatcher compares content against a previously recorded fingerprint.
type ChecksumMatcher struct {
	expectedChecksum string
}

func NewChecksumMatcher(expectedChecksum string) *ChecksumMatcher {
	return &ChecksumMatcher{expectedChecksum: strings.ToLower(strings.TrimSpace(expectedChecksum))}
}

func (cm *ChecksumMatcher) Match(data []byte) (bool, error) {
	if cm.expectedChecksum == "" {
		return false, errors.New("expected checksum is not set")
	}
	return Fingerprint(data) == cm.expectedChecksum, nil
}

// MatchReader is Match for content that should not be loaded whole.
func (cm *ChecksumMatcher) MatchReader(r io.Reader) (bool, error) {
	if cm.expectedChecksum == "" {
		return false, errors.New("expected checksum is not set")
	}
	sum, _, err := FingerprintReader(r)
	if err != nil {
		return false, err
	}
	return sum == cm.expectedChecksum, nil
}
