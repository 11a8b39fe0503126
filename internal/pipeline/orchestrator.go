package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/acasal/costs-collector/constants"
	"github.com/acasal/costs-collector/internal/archive"
	"github.com/acasal/costs-collector/internal/entity"
	"github.com/acasal/costs-collector/internal/extract"
	"github.com/acasal/costs-collector/internal/registry"
	"github.com/acasal/costs-collector/internal/source"
)

// Orchestrator drives the invoice processing workflow: per configured source,
// apply the idempotency gate, then extraction -> archive -> registration per
// invoice. Failures are isolated at the smallest enclosing boundary and the
// run always completes with a report.
//
// Processing is strictly sequential. Sources hold exclusive, stateful portal
// sessions that cannot be interleaved, so there is no parallelism across
// sources or invoices.
type Orchestrator struct {
	sources  []source.Source
	archiver archive.Archiver
	registry registry.Registry
	metadata *extract.MetadataExtractor
	gate     *IdempotencyGate
	now      func() time.Time
	logger   *slog.Logger
}

func NewOrchestrator(
	sources []source.Source,
	archiver archive.Archiver,
	reg registry.Registry,
	metadata *extract.MetadataExtractor,
	gate *IdempotencyGate,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sources:  sources,
		archiver: archiver,
		registry: reg,
		metadata: metadata,
		gate:     gate,
		now:      time.Now,
		logger:   logger,
	}
}

// ProcessInvoices processes invoices from all configured sources, in
// configuration order. since overrides the default 90-day lookback window.
// Collaborator failures never escape; they are recorded in the report.
func (o *Orchestrator) ProcessInvoices(ctx context.Context, since *time.Time) *RunReport {
	report := &RunReport{
		RunID:     uuid.New(),
		StartTime: o.now(),
	}
	lookback := o.gate.lookbackDate(since)

	o.logger.Info("run.start",
		"run_id", report.RunID.String(),
		"since_date", lookback.Format("2006-01-02"),
		"sources_count", len(o.sources),
	)

	for _, src := range o.sources {
		report.addSource(o.processSource(ctx, src, lookback))
	}

	report.EndTime = o.now()
	report.Duration = report.EndTime.Sub(report.StartTime)

	stats, err := o.gate.Statistics(ctx, &lookback)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("statistics: %v", err))
		o.logger.Error("run.statistics.failed", "run_id", report.RunID.String(), "error", err)
	} else {
		report.Statistics = stats
	}

	o.logger.Info("run.done",
		"run_id", report.RunID.String(),
		"duration_ms", report.Duration.Milliseconds(),
		"found", report.TotalFound,
		"processed", report.TotalProcessed,
		"skipped", report.TotalSkipped,
		"failed", report.TotalFailed,
		"success_rate", report.SuccessRate(),
	)
	return report
}

// processSource carries every invoice the source yields through the pipeline.
// A failure to iterate the source at all is recorded as a source-level error;
// it never aborts the run.
func (o *Orchestrator) processSource(ctx context.Context, src source.Source, since time.Time) SourceReport {
	sr := SourceReport{Source: src.Name()}
	o.logger.Info("source.start", "source", src.Name())

	it, err := src.Invoices(ctx, since)
	if err != nil {
		sr.Errors = append(sr.Errors, fmt.Sprintf("source=%s: iterate: %v", src.Name(), err))
		o.logger.Error("source.iterate.failed", "source", src.Name(), "error", err)
		return sr
	}
	defer func() {
		if cerr := it.Close(); cerr != nil {
			o.logger.Warn("source.close.failed", "source", src.Name(), "error", cerr)
		}
	}()

	for {
		inv, err := it.Next(ctx)
		if errors.Is(err, source.ErrEndOfInvoices) {
			break
		}
		if err != nil {
			sr.Errors = append(sr.Errors, fmt.Sprintf("source=%s: iterate: %v", src.Name(), err))
			o.logger.Error("source.iterate.failed", "source", src.Name(), "error", err)
			break
		}
		sr.InvoicesFound++

		dup, err := o.gate.IsDuplicate(ctx, inv, &since)
		if err != nil {
			sr.Errors = append(sr.Errors, fmt.Sprintf("source=%s: duplicate check: %v", src.Name(), err))
			o.logger.Error("source.gate.failed", "source", src.Name(), "error", err)
			break
		}
		if dup {
			sr.InvoicesSkipped++
			o.logger.Debug("invoice.skipped",
				"source", src.Name(),
				"file_name", inv.FileName,
				"invoice_date", inv.InvoiceDate.Format("2006-01-02"),
			)
			continue
		}

		if stage, err := o.processInvoice(ctx, inv); err != nil {
			sr.InvoicesFailed++
			sr.Errors = append(sr.Errors, fmt.Sprintf("source=%s file=%s stage=%s: %v", src.Name(), inv.FileName, stage, err))
			o.logger.Error("invoice.failed",
				"source", src.Name(),
				"file_name", inv.FileName,
				"stage", string(stage),
				"error", err,
			)
		} else {
			sr.InvoicesProcessed++
		}
	}

	o.logger.Info("source.done",
		"source", src.Name(),
		"found", sr.InvoicesFound,
		"processed", sr.InvoicesProcessed,
		"skipped", sr.InvoicesSkipped,
		"failed", sr.InvoicesFailed,
	)
	return sr
}

// processInvoice carries a single invoice through extraction, archiving and
// registration. The returned stage names where processing stopped.
func (o *Orchestrator) processInvoice(ctx context.Context, inv *entity.Invoice) (constants.Stage, error) {
	if err := o.metadata.ExtractMetadata(ctx, inv); err != nil {
		return constants.StageExtracting, err
	}

	o.logger.Debug("invoice.archiving", "file_name", inv.FileName)
	results, err := o.archiver.Archive(ctx, inv)
	if err != nil {
		return constants.StageArchiving, err
	}

	o.logger.Debug("invoice.registering", "file_name", inv.FileName)
	if err := o.registry.Register(ctx, inv, results); err != nil {
		return constants.StageRegistering, err
	}

	o.logger.Info("invoice.ok",
		"file_name", inv.FileName,
		"invoice_date", inv.InvoiceDate.Format("2006-01-02"),
		"cost", inv.Cost.String(),
		"tax", inv.Tax.String(),
		"total", inv.Total().String(),
	)
	return "", nil
}
