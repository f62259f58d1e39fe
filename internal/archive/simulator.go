package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Simulator stands in for object storage when no bucket is configured.
// It returns deterministic URLs without performing any network I/O.
type Simulator struct {
	bucket   string
	endpoint string
}

func NewSimulator(bucket, endpoint string) *Simulator {
	return &Simulator{
		bucket:   strings.TrimSpace(bucket),
		endpoint: strings.TrimSpace(endpoint),
	}
}

func (r *Simulator) UploadExport(_ context.Context, name string, data []byte, _ string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty export data")
	}

	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:8])

	ep := r.endpoint
	if ep == "" {
		ep = "https://archive.example.invalid"
	}
	bucket := r.bucket
	if bucket == "" {
		bucket = "member-archive"
	}

	return fmt.Sprintf("%s/%s/exports/%s_%s", strings.TrimRight(ep, "/"), bucket, key, name), nil
}
