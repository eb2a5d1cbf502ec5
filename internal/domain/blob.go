package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// BlobDeleter removes objects from storage. Kept separate from BlobReader so
// read-only consumers cannot delete.
type BlobDeleter interface {
	Delete(ctx context.Context, path string) error
}

// Archiver copies settled records to cold storage. Nothing is deleted from
// the primary store; settled bets stay queryable for late spread withdrawals
// and crowd claims.
type Archiver interface {
	// ArchiveSettledBets uploads resolved, principal-paid bets older than the
	// cutoff together with their crowd positions.
	ArchiveSettledBets(ctx context.Context, before time.Time) (int64, error)
	// ArchiveAuditLog uploads audit entries older than the cutoff.
	ArchiveAuditLog(ctx context.Context, before time.Time) (int64, error)
}
