package web

import (
	"fmt"
	"strconv"
	"strings"

	"billing-backend/internal/billruns"
	"billing-backend/internal/blocking"
	"billing-backend/internal/setup"
)

const confirmCancelMessage = "You need to confirm or cancel the existing bill run before you can create a new one"

// CheckView describes the outcome of a blocking check for the setup journey.
type CheckView struct {
	SessionID             string          `json:"sessionId"`
	RegionID              string          `json:"regionId"`
	Region                string          `json:"region"`
	BatchType             string          `json:"batchType"`
	Type                  string          `json:"type"`
	FinancialYear         string          `json:"financialYear,omitempty"`
	ToFinancialYearEnding int             `json:"toFinancialYearEnding"`
	Trigger               string          `json:"trigger"`
	CanCreate             bool            `json:"canCreate"`
	WarningMessage        string          `json:"warningMessage,omitempty"`
	BillRuns              []billruns.View `json:"billRuns"`
}

// PresentCheck builds the view for a check or a refused submission.
func PresentCheck(sessionID string, req setup.Request, regionName string, result blocking.Result) CheckView {
	view := CheckView{
		SessionID:             sessionID,
		RegionID:              req.RegionID(),
		Region:                regionName,
		BatchType:             string(req.BatchType()),
		Type:                  billruns.TypeLabel(req.BatchType(), requestScheme(req), setup.Summer(req)),
		FinancialYear:         billruns.FinancialYearLabel(result.ToFinancialYearEnding),
		ToFinancialYearEnding: result.ToFinancialYearEnding,
		Trigger:               string(result.Trigger),
		CanCreate:             !result.Undetermined() && result.Trigger != blocking.TriggerNeither,
		BillRuns:              billruns.PresentAll(result.Matches),
	}
	switch {
	case result.Undetermined():
		view.WarningMessage = cannotCreateMessage(view.Type)
	case result.Trigger == blocking.TriggerNeither && len(result.Matches) > 0:
		view.WarningMessage = warningMessage(req.BatchType(), result.Matches[0])
	}
	return view
}

// cannotCreateMessage is shown when no financial year could be worked out for
// a run of the given type label.
func cannotCreateMessage(typeLabel string) string {
	return fmt.Sprintf("You cannot create a %s bill run for this region until you have created an annual bill run", strings.ToLower(typeLabel))
}

// warningMessage explains why match blocks a new run of batchType.
func warningMessage(batchType billruns.BatchType, match billruns.BillRun) string {
	if batchType == billruns.BatchSupplementary && match.Status.IsLive() {
		return confirmCancelMessage
	}
	label := strings.ToLower(billruns.TypeLabel(match.BatchType, match.Scheme, match.Summer))
	return fmt.Sprintf("You can only have one %s bill run per region in a financial year", label)
}

// requestScheme is the scheme a two-part tariff request falls under; other
// types span both.
func requestScheme(req setup.Request) billruns.Scheme {
	if tpt, ok := req.(setup.TwoPartTariffRequest); ok && tpt.Year != "" {
		if year, err := strconv.Atoi(tpt.Year); err == nil && year <= billruns.PresrocCutoverYear {
			return billruns.SchemeALCS
		}
	}
	return billruns.SchemeSROC
}
