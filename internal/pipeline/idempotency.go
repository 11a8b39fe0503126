package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/acasal/costs-collector/constants"
	"github.com/acasal/costs-collector/internal/entity"
	"github.com/acasal/costs-collector/internal/registry"
)

// DefaultLookback is the duplicate-detection horizon when the caller does not
// override it.
const DefaultLookback = 90 * 24 * time.Hour

// NaturalKey derives the duplicate-detection key for an invoice. Provider
// portals rarely expose a stable external invoice identifier, so the same
// (date, concept, type, cost) combination recurring within the lookback
// window is treated as conclusive evidence of a duplicate.
func NaturalKey(invoiceDate time.Time, concept, typ string, cost decimal.Decimal) string {
	return fmt.Sprintf("%s_%s_%s_%s", invoiceDate.Format("2006-01-02"), concept, typ, cost.StringFixed(2))
}

// IdempotencyGate decides whether a candidate invoice has already been
// registered. The registry is the source of truth and is re-queried on every
// check; no index is persisted between runs.
type IdempotencyGate struct {
	registry registry.Registry
	lookback time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewIdempotencyGate(reg registry.Registry, logger *slog.Logger) *IdempotencyGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyGate{
		registry: reg,
		lookback: DefaultLookback,
		now:      time.Now,
		logger:   logger,
	}
}

// WithLookback overrides the duplicate-detection horizon. Non-positive
// durations are ignored.
func (g *IdempotencyGate) WithLookback(d time.Duration) *IdempotencyGate {
	if d > 0 {
		g.lookback = d
	}
	return g
}

func (g *IdempotencyGate) lookbackDate(since *time.Time) time.Time {
	if since != nil {
		return *since
	}
	return g.now().Add(-g.lookback)
}

// ledgerIndex is a one-query snapshot of the ledger window, indexed both by
// natural key and by document hash. The hash index is what catches re-runs:
// sources yield candidates with placeholder financial fields, so before
// extraction the natural key of a re-downloaded document never matches the
// ledger row written for it, while its content hash always does.
type ledgerIndex struct {
	keys   map[string]struct{}
	hashes map[string]struct{}
}

func (idx *ledgerIndex) has(inv *entity.Invoice) bool {
	if _, ok := idx.hashes[inv.SHA256Hex]; ok {
		return true
	}
	_, ok := idx.keys[NaturalKey(inv.InvoiceDate, inv.Concept, inv.Type, inv.Cost)]
	return ok
}

func (g *IdempotencyGate) loadIndex(ctx context.Context, since *time.Time) (*ledgerIndex, error) {
	registered, err := g.registry.RegisteredSince(ctx, g.lookbackDate(since))
	if err != nil {
		return nil, fmt.Errorf("load registered invoices: %w", err)
	}
	idx := &ledgerIndex{
		keys:   make(map[string]struct{}, len(registered)),
		hashes: make(map[string]struct{}, len(registered)),
	}
	for _, reg := range registered {
		idx.keys[NaturalKey(reg.InvoiceDate, reg.Concept, reg.Type, reg.Cost)] = struct{}{}
		if reg.FileHash != "" {
			idx.hashes[reg.FileHash] = struct{}{}
		}
	}
	return idx, nil
}

// IsDuplicate reports whether the candidate matches a ledger row within the
// lookback window, by natural key or by document hash.
func (g *IdempotencyGate) IsDuplicate(ctx context.Context, inv *entity.Invoice, since *time.Time) (bool, error) {
	idx, err := g.loadIndex(ctx, since)
	if err != nil {
		return false, err
	}
	return idx.has(inv), nil
}

// FilterNew returns the candidates not yet matched by the ledger, preserving
// order. Running it twice against an unchanged registry yields the same
// result.
func (g *IdempotencyGate) FilterNew(ctx context.Context, candidates []*entity.Invoice, since *time.Time) ([]*entity.Invoice, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	idx, err := g.loadIndex(ctx, since)
	if err != nil {
		return nil, err
	}

	var fresh []*entity.Invoice
	for _, inv := range candidates {
		if idx.has(inv) {
			g.logger.Debug("gate.duplicate", "file_hash", inv.SHA256Hex, "file_name", inv.FileName)
			continue
		}
		fresh = append(fresh, inv)
	}

	g.logger.Info("gate.filtered",
		"total", len(candidates),
		"new", len(fresh),
		"already_processed", len(candidates)-len(fresh),
	)
	return fresh, nil
}

// ConceptStats is the per-concept slice of the statistics projection.
type ConceptStats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Statistics is a read-side projection over the ledger window. Sums cover
// successful entries only.
type Statistics struct {
	TotalInvoices    int                      `json:"total_invoices"`
	Successful       int                      `json:"successful_invoices"`
	Failed           int                      `json:"failed_invoices"`
	Skipped          int                      `json:"skipped_invoices"`
	SuccessRate      float64                  `json:"success_rate"`
	ConceptBreakdown map[string]*ConceptStats `json:"concept_breakdown"`
	TotalCost        decimal.Decimal          `json:"total_cost"`
	TotalTax         decimal.Decimal          `json:"total_tax"`
	TotalDeductible  decimal.Decimal          `json:"total_deductible"`
	PeriodStart      time.Time                `json:"period_start"`
	PeriodEnd        time.Time                `json:"period_end"`
}

// Statistics computes aggregate counts over the lookback window. Pure read,
// no side effects.
func (g *IdempotencyGate) Statistics(ctx context.Context, since *time.Time) (*Statistics, error) {
	start := g.lookbackDate(since)
	registered, err := g.registry.RegisteredSince(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("load registered invoices: %w", err)
	}

	stats := &Statistics{
		TotalInvoices:    len(registered),
		ConceptBreakdown: make(map[string]*ConceptStats),
		TotalCost:        decimal.Zero,
		TotalTax:         decimal.Zero,
		TotalDeductible:  decimal.Zero,
		PeriodStart:      start,
		PeriodEnd:        g.now(),
	}

	for i := range registered {
		reg := &registered[i]
		cs := stats.ConceptBreakdown[reg.Concept]
		if cs == nil {
			cs = &ConceptStats{}
			stats.ConceptBreakdown[reg.Concept] = cs
		}
		cs.Total++

		switch constants.InvoiceStatus(reg.Status) {
		case constants.StatusSuccess:
			stats.Successful++
			cs.Successful++
			stats.TotalCost = stats.TotalCost.Add(reg.Cost)
			stats.TotalTax = stats.TotalTax.Add(reg.Tax)
			stats.TotalDeductible = stats.TotalDeductible.Add(reg.DeductibleAmount())
		case constants.StatusFailed:
			stats.Failed++
			cs.Failed++
		case constants.StatusSkipped:
			stats.Skipped++
			cs.Skipped++
		}
	}

	if stats.TotalInvoices > 0 {
		stats.SuccessRate = float64(stats.Successful) / float64(stats.TotalInvoices)
	}
	return stats, nil
}
