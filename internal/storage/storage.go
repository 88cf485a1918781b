// Package storage archives rendered receipt PDFs in durable object storage.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/thorvaldsen/leasehold/internal/domain"
)

// Storage defines the interface for receipt archive operations.
// Implementations exist for the local filesystem and Cloudflare R2.
type Storage interface {
	// Put stores an object and returns its public URL.
	Put(ctx context.Context, key string, content io.Reader, contentType string) (string, error)

	// Get retrieves an object by its key. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error

	// URL returns the public URL for a stored object.
	URL(key string) string

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// ReceiptKey is the archive path for a settlement receipt, namespaced by
// landlord and property so one landlord's receipts can be listed or purged
// without touching another's.
func ReceiptKey(landlordID, propertyID, paymentID string) string {
	return fmt.Sprintf("invoices/%s/%s/%s.pdf", landlordID, propertyID, paymentID)
}

// Config selects and configures a storage backend.
type Config struct {
	Provider string // "local" or "r2"

	LocalPath string
	LocalURL  string

	R2AccountID   string
	R2AccessKeyID string
	R2SecretKey   string
	R2BucketName  string
	R2PublicURL   string
}

// New creates a Storage implementation from configuration.
func New(cfg Config) (Storage, error) {
	switch cfg.Provider {
	case "local", "":
		return NewLocalStorage(cfg.LocalPath, cfg.LocalURL)
	case "r2":
		return NewR2Storage(R2Config{
			AccountID:   cfg.R2AccountID,
			AccessKeyID: cfg.R2AccessKeyID,
			SecretKey:   cfg.R2SecretKey,
			BucketName:  cfg.R2BucketName,
			PublicURL:   cfg.R2PublicURL,
		})
	default:
		return nil, domain.Errorf(domain.EINVALID, "storage.new", "unknown storage provider: %s", cfg.Provider)
	}
}
