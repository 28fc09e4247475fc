package billruns

import "time"

// BatchType identifies the kind of bill run.
type BatchType string

const (
	BatchAnnual               BatchType = "annual"
	BatchSupplementary        BatchType = "supplementary"
	BatchTwoPartTariff        BatchType = "two_part_tariff"
	BatchTwoPartSupplementary BatchType = "two_part_supplementary"
)

// Valid reports whether t is a known batch type.
func (t BatchType) Valid() bool {
	switch t {
	case BatchAnnual, BatchSupplementary, BatchTwoPartTariff, BatchTwoPartSupplementary:
		return true
	default:
		return false
	}
}

// Scheme is the charge scheme a bill run was produced under.
type Scheme string

const (
	SchemeSROC Scheme = "sroc"
	// SchemeALCS is the pre-2022 (PRESROC) scheme billed by the old engine.
	SchemeALCS Scheme = "alcs"
)

// Status is a bill run lifecycle state.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusReview     Status = "review"
	StatusSending    Status = "sending"
	StatusSent       Status = "sent"
	StatusCancel     Status = "cancel"
	StatusEmpty      Status = "empty"
	StatusError      Status = "error"
)

// PresrocCutoverYear is the last financial year ending billed under PRESROC.
const PresrocCutoverYear = 2022

var (
	// LiveStatuses are the non-terminal states; only one live run may exist
	// per region and financial year.
	LiveStatuses = []Status{StatusQueued, StatusProcessing, StatusReady, StatusReview}
	// TerminalStatuses never block a new annual or two-part tariff run.
	TerminalStatuses = []Status{StatusCancel, StatusEmpty, StatusError}
	// SupplementaryIgnoredStatuses never block a new supplementary run.
	SupplementaryIgnoredStatuses = []Status{StatusCancel, StatusEmpty, StatusError, StatusSending, StatusSent}
)

// IsLive reports whether s is one of LiveStatuses.
func (s Status) IsLive() bool {
	for _, live := range LiveStatuses {
		if s == live {
			return true
		}
	}
	return false
}

// BillRun is the read projection of a bill_runs row.
type BillRun struct {
	ID                      string
	RegionID                string
	RegionDisplayName       string
	BatchType               BatchType
	BillRunNumber           int
	Scheme                  Scheme
	Status                  Status
	Summer                  bool
	FromFinancialYearEnding int
	ToFinancialYearEnding   int
	CreatedBy               string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}
