package checksum

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidFingerprint = errors.New("fingerprint must be 64 hex characters")

// Lookup finds the batch already recorded for a fingerprint. found is false
// with a nil error when there is none.
type Lookup interface {
	BatchIDByFingerprint(ctx context.Context, fingerprint string) (batchID string, found bool, err error)
}

type DuplicateCheck struct {
	Exists          bool   `json:"exists"`
	ExistingBatchID string `json:"existing_batch_id,omitempty"`
}

type Service struct {
	lookup Lookup
}

func NewService(lookup Lookup) *Service {
	return &Service{lookup: lookup}
}

// Check answers whether a file with this fingerprint was already accepted.
func (s *Service) Check(ctx context.Context, fingerprint string) (DuplicateCheck, error) {
	fp, err := CanonicalFingerprint(fingerprint)
	if err != nil {
		return DuplicateCheck{}, err
	}
	id, found, err := s.lookup.BatchIDByFingerprint(ctx, fp)
	if err != nil {
		return DuplicateCheck{}, fmt.Errorf("duplicate lookup: %w", err)
	}
	if !found {
		return DuplicateCheck{}, nil
	}
	return DuplicateCheck{Exists: true, ExistingBatchID: id}, nil
}

// CanonicalFingerprint lowercases and checks a client supplied digest.
func CanonicalFingerprint(s string) (string, error) {
	fp := strings.ToLower(strings.TrimSpace(s))
	if len(fp) != 64 {
		return "", ErrInvalidFingerprint
	}
	for _, r := range fp {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", ErrInvalidFingerprint
		}
	}
	return fp, nil
}
