// Package storage abstracts where uploaded attachment files live. The
// record layer only sees relative storage paths; the public URL prefix is
// owned by the attachment service.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/partnerdesk/partnerdesk/internal/config"
)

type Storage interface {
	// Save stores a file at the given relative path.
	Save(ctx context.Context, path string, r io.Reader) error

	// Delete removes the file. Deleting a missing file returns fs.ErrNotExist
	// where the backend can tell.
	Delete(ctx context.Context, path string) error

	// Serve writes the file to the response, however the backend prefers
	// (local disk serves bytes, S3 redirects to a presigned URL).
	Serve(w http.ResponseWriter, r *http.Request, path string)
}

// New selects the backend from config.
func New(cfg *config.Config) (Storage, error) {
	switch cfg.StorageDriver {
	case "local", "":
		return NewLocal(cfg.UploadDir)
	case "s3":
		return NewS3(S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Endpoint:  cfg.S3Endpoint,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
