package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/octagon/internal/domain"
)

// ---------------------------------------------------------------------------
// Narrow store interfaces required by the archiver.
//
// The archiver only needs the query methods it actually calls, not the full
// domain store interfaces. The Postgres stores satisfy these implicitly.
// ---------------------------------------------------------------------------

// MarketArchiveStore provides the resolved-market queries the archiver walks.
type MarketArchiveStore interface {
	ListResolvedSince(ctx context.Context, since time.Time) ([]domain.Market, error)
	MarkArchived(ctx context.Context, id string) error
}

// BetArchiveStore provides read access to the full bet list of a market.
// The unbounded variant matters: an export capped by a pagination default
// would silently truncate the settlement trail.
type BetArchiveStore interface {
	ListAllByMarket(ctx context.Context, marketID string) ([]domain.Bet, error)
}

// LedgerArchiveStore provides read access to a market's ledger trail.
type LedgerArchiveStore interface {
	ListTransactionsByMarket(ctx context.Context, marketID string) ([]domain.Transaction, error)
}

// settlementRecord is the exported shape of one settled market: the market
// snapshot, every bet admitted into its pools, and every ledger entry the
// settlement produced.
type settlementRecord struct {
	Market       domain.Market        `json:"market"`
	Bets         []domain.Bet         `json:"bets"`
	Transactions []domain.Transaction `json:"transactions"`
	ArchivedAt   time.Time            `json:"archived_at"`
}

// ArchiveImpl implements domain.Archiver: it exports the full settlement
// trail of each resolved market to S3 as JSONL and stamps the market so the
// next run skips it. Nothing is deleted from the primary store; the archive
// is an audit copy, not a purge.
type ArchiveImpl struct {
	writer  domain.BlobWriter
	markets MarketArchiveStore
	bets    BetArchiveStore
	ledger  LedgerArchiveStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	markets MarketArchiveStore,
	bets BetArchiveStore,
	ledger LedgerArchiveStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:  writer,
		markets: markets,
		bets:    bets,
		ledger:  ledger,
	}
}

// Run exports every resolved, not-yet-archived market and returns the number
// archived. A failure on one market aborts the run so the next pass retries
// from where it stopped.
func (a *ArchiveImpl) Run(ctx context.Context) (int, error) {
	markets, err := a.markets.ListResolvedSince(ctx, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("s3blob: list resolved markets: %w", err)
	}

	var archived int
	for _, m := range markets {
		if err := a.archiveMarket(ctx, m); err != nil {
			return archived, err
		}
		archived++
	}
	return archived, nil
}

func (a *ArchiveImpl) archiveMarket(ctx context.Context, m domain.Market) error {
	bets, err := a.bets.ListAllByMarket(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("s3blob: archive %s bets: %w", m.ID, err)
	}
	txs, err := a.ledger.ListTransactionsByMarket(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("s3blob: archive %s transactions: %w", m.ID, err)
	}

	buf, err := marshalJSONL([]settlementRecord{{
		Market:       m,
		Bets:         bets,
		Transactions: txs,
		ArchivedAt:   time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("s3blob: archive %s marshal: %w", m.ID, err)
	}

	path := archivePath(m)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive %s upload: %w", m.ID, err)
	}

	if err := a.markets.MarkArchived(ctx, m.ID); err != nil {
		return fmt.Errorf("s3blob: archive %s mark: %w", m.ID, err)
	}
	return nil
}

// archivePath builds the S3 key for a settlement export, partitioned by the
// year-month of resolution:
//
//	archive/settlements/2025-08/<market-id>.jsonl
func archivePath(m domain.Market) string {
	month := time.Now().UTC()
	if m.ResolvedAt != nil {
		month = *m.ResolvedAt
	}
	return fmt.Sprintf("archive/settlements/%s/%s.jsonl", month.Format("2006-01"), m.ID)
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
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

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
