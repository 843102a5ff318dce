package services

import (
	"github.com/shopspring/decimal"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type Validation struct {
	Issues    []string  `json:"issues"`
	RiskLevel RiskLevel `json:"risk_level"`
}

func (v Validation) Flagged() bool {
	return len(v.Issues) > 0
}

// ResultValidator applies plausibility checks to submitted contest results.
// It only flags; it never rejects a submission.
type ResultValidator struct {
	MaxScore decimal.Decimal
	// FastRatio is the fraction of the expected time below which a finish is
	// suspicious.
	FastRatio float64
}

func NewResultValidator() *ResultValidator {
	return &ResultValidator{
		MaxScore:  decimal.NewFromInt(100),
		FastRatio: 0.1,
	}
}

// Validate checks score and timeTaken (seconds) against a contest that runs
// for expectedSeconds.
func (v *ResultValidator) Validate(score decimal.Decimal, timeTaken, expectedSeconds int) Validation {
	var issues []string

	if timeTaken < 0 {
		issues = append(issues, "Invalid timing data")
	} else if expectedSeconds > 0 && float64(timeTaken) < float64(expectedSeconds)*v.FastRatio {
		issues = append(issues, "Suspiciously fast completion time")
	}

	if score.GreaterThan(v.MaxScore) {
		issues = append(issues, "Score exceeds maximum possible value")
	}
	if score.IsNegative() {
		issues = append(issues, "Invalid score value")
	}

	return Validation{Issues: issues, RiskLevel: riskLevel(len(issues))}
}

func riskLevel(issues int) RiskLevel {
	switch {
	case issues == 0:
		return RiskLow
	case issues <= 2:
		return RiskMedium
	default:
		return RiskHigh
	}
}
