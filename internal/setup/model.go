package setup

import (
	"strconv"
	"strings"
	"time"

	"billing-backend/internal/billruns"
)

const SeasonSummer = "summer"

// Data holds the answers collected by the setup wizard.
type Data struct {
	Region string `json:"region,omitempty"`
	Type   string `json:"type,omitempty"`
	Year   string `json:"year,omitempty"`
	Season string `json:"season,omitempty"`
}

// Session is the persisted state of one bill run setup journey.
type Session struct {
	ID        string
	Data      Data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Request is a complete, type-specific bill run request built from a session.
type Request interface {
	RegionID() string
	BatchType() billruns.BatchType
	// SelectedYear is the user's year choice; only two-part tariff carries one.
	SelectedYear() string
}

// AnnualRequest asks for an annual bill run.
type AnnualRequest struct {
	Region string
}

// SupplementaryRequest asks for a supplementary bill run.
type SupplementaryRequest struct {
	Region string
}

// TwoPartTariffRequest asks for a two-part tariff annual bill run.
type TwoPartTariffRequest struct {
	Region string
	Year   string
	// Summer only matters for old-scheme years.
	Summer bool
}

// TwoPartSupplementaryRequest asks for a two-part tariff supplementary bill run.
type TwoPartSupplementaryRequest struct {
	Region string
}

func (r AnnualRequest) RegionID() string              { return r.Region }
func (r AnnualRequest) BatchType() billruns.BatchType { return billruns.BatchAnnual }
func (r AnnualRequest) SelectedYear() string          { return "" }

func (r SupplementaryRequest) RegionID() string              { return r.Region }
func (r SupplementaryRequest) BatchType() billruns.BatchType { return billruns.BatchSupplementary }
func (r SupplementaryRequest) SelectedYear() string          { return "" }

func (r TwoPartTariffRequest) RegionID() string              { return r.Region }
func (r TwoPartTariffRequest) BatchType() billruns.BatchType { return billruns.BatchTwoPartTariff }
func (r TwoPartTariffRequest) SelectedYear() string          { return r.Year }

func (r TwoPartSupplementaryRequest) RegionID() string { return r.Region }
func (r TwoPartSupplementaryRequest) BatchType() billruns.BatchType {
	return billruns.BatchTwoPartSupplementary
}
func (r TwoPartSupplementaryRequest) SelectedYear() string { return "" }

// Summer reports the season flag for any request; false unless two-part tariff summer.
func Summer(req Request) bool {
	if tpt, ok := req.(TwoPartTariffRequest); ok {
		return tpt.Summer
	}
	return false
}

// Request converts the session answers into a typed request.
func (s Session) Request() (Request, error) {
	region := strings.TrimSpace(s.Data.Region)
	if region == "" {
		return nil, incomplete("region")
	}
	switch billruns.BatchType(s.Data.Type) {
	case billruns.BatchAnnual:
		return AnnualRequest{Region: region}, nil
	case billruns.BatchSupplementary:
		return SupplementaryRequest{Region: region}, nil
	case billruns.BatchTwoPartSupplementary:
		return TwoPartSupplementaryRequest{Region: region}, nil
	case billruns.BatchTwoPartTariff:
		year, err := strconv.Atoi(strings.TrimSpace(s.Data.Year))
		if err != nil || year <= 0 {
			return nil, incomplete("year")
		}
		if year <= billruns.PresrocCutoverYear && s.Data.Season == "" {
			return nil, incomplete("season")
		}
		return TwoPartTariffRequest{
			Region: region,
			Year:   strconv.Itoa(year),
			Summer: year <= billruns.PresrocCutoverYear && s.Data.Season == SeasonSummer,
		}, nil
	default:
		return nil, incomplete("type")
	}
}
