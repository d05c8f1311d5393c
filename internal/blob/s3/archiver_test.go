package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/octagon/internal/domain"
)

type fakeWriter struct {
	paths  []string
	bodies [][]byte
	err    error
}

func (w *fakeWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	if w.err != nil {
		return w.err
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.paths = append(w.paths, path)
	w.bodies = append(w.bodies, body)
	return nil
}

func (w *fakeWriter) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	return w.Put(ctx, path, data, "")
}

type fakeMarketSource struct {
	resolved []domain.Market
	marked   []string
}

func (s *fakeMarketSource) ListResolvedSince(ctx context.Context, since time.Time) ([]domain.Market, error) {
	return s.resolved, nil
}

func (s *fakeMarketSource) MarkArchived(ctx context.Context, id string) error {
	s.marked = append(s.marked, id)
	return nil
}

type fakeBetSource struct {
	bets map[string][]domain.Bet
}

func (s *fakeBetSource) ListAllByMarket(ctx context.Context, marketID string) ([]domain.Bet, error) {
	return s.bets[marketID], nil
}

type fakeLedgerSource struct {
	txs map[string][]domain.Transaction
}

func (s *fakeLedgerSource) ListTransactionsByMarket(ctx context.Context, marketID string) ([]domain.Transaction, error) {
	return s.txs[marketID], nil
}

func manyBets(marketID string, n int) []domain.Bet {
	bets := make([]domain.Bet, n)
	for i := range bets {
		bets[i] = domain.Bet{
			ID:        fmt.Sprintf("b%d", i),
			UserID:    fmt.Sprintf("u%d", i),
			MarketID:  marketID,
			OutcomeID: "o1",
			Amount:    1,
		}
	}
	return bets
}

func TestArchiverRun_ExportsEveryBet(t *testing.T) {
	// Well past any pagination default: the export must carry the complete
	// bet list, not the first page.
	resolvedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	markets := &fakeMarketSource{resolved: []domain.Market{
		{ID: "m1", Status: domain.MarketResolved, ResolvedAt: &resolvedAt},
	}}
	bets := &fakeBetSource{bets: map[string][]domain.Bet{"m1": manyBets("m1", 450)}}
	ledger := &fakeLedgerSource{txs: map[string][]domain.Transaction{
		"m1": {{UserID: "u0", Amount: -1, Kind: domain.TxBet}},
	}}
	writer := &fakeWriter{}
	arch := NewArchiver(writer, markets, bets, ledger)

	archived, err := arch.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, archived)
	assert.Equal(t, []string{"m1"}, markets.marked)

	require.Len(t, writer.paths, 1)
	assert.Equal(t, "archive/settlements/2026-08/m1.jsonl", writer.paths[0])

	var record settlementRecord
	line := bytes.TrimRight(writer.bodies[0], "\n")
	require.NoError(t, json.Unmarshal(line, &record))
	assert.Len(t, record.Bets, 450)
	assert.Len(t, record.Transactions, 1)
	assert.Equal(t, "m1", record.Market.ID)
}

func TestArchiverRun_UploadFailureLeavesMarketUnmarked(t *testing.T) {
	markets := &fakeMarketSource{resolved: []domain.Market{
		{ID: "m1", Status: domain.MarketResolved},
	}}
	writer := &fakeWriter{err: errors.New("bucket unavailable")}
	arch := NewArchiver(writer, markets, &fakeBetSource{}, &fakeLedgerSource{})

	archived, err := arch.Run(context.Background())

	require.Error(t, err)
	assert.Zero(t, archived)
	assert.Empty(t, markets.marked)
}
