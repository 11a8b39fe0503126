package constants

// InvoiceStatus is the canonical status for rows in the ledger.
type InvoiceStatus string

// Stable values (store these exact strings in the registry).
const (
	StatusSuccess InvoiceStatus = "success" // archived and registered
	StatusFailed  InvoiceStatus = "failed"  // terminal failure at any stage
	StatusSkipped InvoiceStatus = "skipped" // filtered out as a duplicate
)

// IsValidStatus reports whether s is one of the closed status set.
func IsValidStatus(s string) bool {
	switch InvoiceStatus(s) {
	case StatusSuccess, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Stage names the step of the per-invoice pipeline, for error context.
type Stage string

const (
	StageExtracting  Stage = "EXTRACTING"
	StageArchiving   Stage = "ARCHIVING"
	StageRegistering Stage = "REGISTERING"
)
