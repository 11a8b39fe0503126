package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// SourceReport accumulates per-source counts and error messages for one run.
type SourceReport struct {
	Source            string   `json:"source"`
	InvoicesFound     int      `json:"invoices_found"`
	InvoicesProcessed int      `json:"invoices_processed"`
	InvoicesSkipped   int      `json:"invoices_skipped"`
	InvoicesFailed    int      `json:"invoices_failed"`
	Errors            []string `json:"errors,omitempty"`
}

// RunReport is the sole user-facing surface of a run. A completed run always
// yields one, even a run full of failures.
type RunReport struct {
	RunID            uuid.UUID      `json:"run_id"`
	StartTime        time.Time      `json:"start_time"`
	EndTime          time.Time      `json:"end_time"`
	Duration         time.Duration  `json:"duration"`
	SourcesProcessed int            `json:"sources_processed"`
	TotalFound       int            `json:"total_invoices_found"`
	TotalProcessed   int            `json:"total_invoices_processed"`
	TotalSkipped     int            `json:"total_invoices_skipped"`
	TotalFailed      int            `json:"total_invoices_failed"`
	SourceReports    []SourceReport `json:"source_results"`
	Errors           []string       `json:"errors,omitempty"`
	Statistics       *Statistics    `json:"statistics,omitempty"`
}

// SuccessRate is processed/(processed+failed), 0 when nothing was attempted.
func (r *RunReport) SuccessRate() float64 {
	attempted := r.TotalProcessed + r.TotalFailed
	if attempted == 0 {
		return 0
	}
	return float64(r.TotalProcessed) / float64(attempted)
}

func (r *RunReport) addSource(sr SourceReport) {
	r.SourceReports = append(r.SourceReports, sr)
	r.SourcesProcessed++
	r.TotalFound += sr.InvoicesFound
	r.TotalProcessed += sr.InvoicesProcessed
	r.TotalSkipped += sr.InvoicesSkipped
	r.TotalFailed += sr.InvoicesFailed
}
