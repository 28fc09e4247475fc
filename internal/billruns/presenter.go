package billruns

import (
	"fmt"
	"time"
)

// View is the outward-facing representation of a bill run.
type View struct {
	ID            string    `json:"id"`
	Link          string    `json:"link"`
	Number        int       `json:"number"`
	Region        string    `json:"region"`
	RegionID      string    `json:"regionId"`
	Type          string    `json:"type"`
	BatchType     BatchType `json:"batchType"`
	Scheme        string    `json:"scheme"`
	Status        Status    `json:"status"`
	FinancialYear string    `json:"financialYear"`
	CreatedBy     string    `json:"createdBy,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Present reshapes a bill run into its view model.
func Present(run BillRun) View {
	return View{
		ID:            run.ID,
		Link:          Link(run.ID),
		Number:        run.BillRunNumber,
		Region:        run.RegionDisplayName,
		RegionID:      run.RegionID,
		Type:          TypeLabel(run.BatchType, run.Scheme, run.Summer),
		BatchType:     run.BatchType,
		Scheme:        SchemeLabel(run.Scheme),
		Status:        run.Status,
		FinancialYear: FinancialYearLabel(run.ToFinancialYearEnding),
		CreatedBy:     run.CreatedBy,
		CreatedAt:     run.CreatedAt,
	}
}

// PresentAll reshapes a list of bill runs.
func PresentAll(runs []BillRun) []View {
	out := make([]View, 0, len(runs))
	for _, run := range runs {
		out = append(out, Present(run))
	}
	return out
}

// Link is the UI path of a bill run.
func Link(id string) string {
	return "/system/bill-runs/" + id
}

// SchemeLabel names a scheme the way users know it.
func SchemeLabel(scheme Scheme) string {
	if scheme == SchemeALCS {
		return "Old"
	}
	return "Current"
}

// FinancialYearLabel renders a year ending as "2024 to 2025".
func FinancialYearLabel(toFinancialYearEnding int) string {
	if toFinancialYearEnding <= 0 {
		return ""
	}
	return fmt.Sprintf("%d to %d", toFinancialYearEnding-1, toFinancialYearEnding)
}

// TypeLabel renders the batch type; old-scheme two-part tariff runs also name their season.
func TypeLabel(batchType BatchType, scheme Scheme, summer bool) string {
	switch batchType {
	case BatchAnnual:
		return "Annual"
	case BatchSupplementary:
		return "Supplementary"
	case BatchTwoPartTariff:
		if scheme == SchemeALCS {
			if summer {
				return "Two-part tariff summer"
			}
			return "Two-part tariff winter and all year"
		}
		return "Two-part tariff"
	case BatchTwoPartSupplementary:
		return "Two-part tariff supplementary"
	default:
		return string(batchType)
	}
}
