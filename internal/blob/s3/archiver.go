package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crowdduel/duelbet/internal/domain"
)

// SettledBetStore provides read access to settled bets for archival. The
// Postgres BetStore satisfies it.
type SettledBetStore interface {
	ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Bet, error)
}

// PositionArchiveStore provides read access to a bet's crowd positions. The
// Postgres SupportStore satisfies it.
type PositionArchiveStore interface {
	ListByBet(ctx context.Context, betID string) ([]domain.SupportPosition, error)
}

// AuditArchiveStore provides read access to aged audit entries.
type AuditArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.AuditEntry, error)
	Log(ctx context.Context, event string, detail map[string]any) error
}

// settledBetRecord is one JSONL line in a settled-bets archive: the bet and
// every crowd position it attracted.
type settledBetRecord struct {
	Bet       domain.Bet               `json:"bet"`
	Positions []domain.SupportPosition `json:"positions"`
}

// ArchiveImpl implements domain.Archiver by querying the stores for settled
// records, serializing them to JSONL, and uploading the result to object
// storage.
//
// Archived records are not deleted from the primary store. Settled bets stay
// queryable for late crowd claims and spread withdrawals; the archive is the
// long-term record.
type ArchiveImpl struct {
	writer    domain.BlobWriter
	bets      SettledBetStore
	positions PositionArchiveStore
	audit     AuditArchiveStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	bets SettledBetStore,
	positions PositionArchiveStore,
	audit AuditArchiveStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:    writer,
		bets:      bets,
		positions: positions,
		audit:     audit,
	}
}

// ArchiveSettledBets queries resolved, principal-paid bets older than the
// cutoff, bundles each with its crowd positions, and uploads the batch as
// JSONL at archive/settled_bets/YYYY-MM.jsonl. The archival event is recorded
// in the audit log and the count of archived bets is returned.
func (a *ArchiveImpl) ArchiveSettledBets(ctx context.Context, before time.Time) (int64, error) {
	bets, err := a.bets.ListSettledBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settled bets query: %w", err)
	}
	if len(bets) == 0 {
		return 0, nil
	}

	records := make([]settledBetRecord, 0, len(bets))
	for _, b := range bets {
		positions, err := a.positions.ListByBet(ctx, b.ID)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive settled bets positions %s: %w", b.ID, err)
		}
		records = append(records, settledBetRecord{Bet: b, Positions: positions})
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settled bets marshal: %w", err)
	}

	path := archivePath("settled_bets", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive settled bets upload: %w", err)
	}

	count := int64(len(records))

	if err := a.audit.Log(ctx, "archive.settled_bets", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive settled bets audit log: %w", err)
	}

	return count, nil
}

// ArchiveAuditLog queries audit entries older than the cutoff, serializes
// them to JSONL, and uploads the file at archive/audit_log/YYYY-MM.jsonl. The
// count of archived entries is returned.
func (a *ArchiveImpl) ArchiveAuditLog(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit log query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit log marshal: %w", err)
	}

	path := archivePath("audit_log", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive audit log upload: %w", err)
	}

	count := int64(len(entries))

	if err := a.audit.Log(ctx, "archive.audit_log", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive audit log audit log: %w", err)
	}

	return count, nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/settled_bets/2026-08.jsonl
//	archive/audit_log/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON. Each
// element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*ArchiveImpl)(nil)
