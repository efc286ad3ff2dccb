package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when no object exists under the requested key.
var ErrNotFound = errors.New("object not found")

// Store reads and removes annex files. Files are written by the upload service under AnnexKey;
// the Put methods of the implementations serve that writer and test fixtures.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*S3Store)(nil)
)

// AnnexKey builds the object key of an annex file, scoped by company and demand.
func AnnexKey(companyID, demandID, annexID, fileName string) string {
	return ObjectKey(companyID, "demands", demandID, "annexes", annexID, fileName)
}

// ObjectKey joins key parts with "/", dropping empty parts and stray slashes.
func ObjectKey(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, "/")
}

func normalizeKey(key string) string {
	return strings.TrimLeft(strings.TrimSpace(key), "/")
}
