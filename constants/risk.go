package constants

// Severity grades a detected risk flag.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for comparison and sorting. Unknown values rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// RiskCategory classifies what part of the contract a flag concerns.
type RiskCategory string

const (
	RiskLiability       RiskCategory = "liability"
	RiskIndemnification RiskCategory = "indemnification"
	RiskTermination     RiskCategory = "termination"
	RiskAutoRenewal     RiskCategory = "auto_renewal"
	RiskConfidentiality RiskCategory = "confidentiality"
	RiskPayment         RiskCategory = "payment"
	RiskIP              RiskCategory = "ip"
	RiskCompliance      RiskCategory = "compliance"
	RiskDispute         RiskCategory = "dispute"
	RiskAssignment      RiskCategory = "assignment"
)

var allRiskCategories = []RiskCategory{
	RiskLiability,
	RiskIndemnification,
	RiskTermination,
	RiskAutoRenewal,
	RiskConfidentiality,
	RiskPayment,
	RiskIP,
	RiskCompliance,
	RiskDispute,
	RiskAssignment,
}

// RiskCategoriesAsStrings returns the category taxonomy for prompts and schema enums.
func RiskCategoriesAsStrings() []string {
	result := make([]string, len(allRiskCategories))
	for i, c := range allRiskCategories {
		result[i] = string(c)
	}
	return result
}

// RiskLevel buckets an aggregate 0-100 risk score.
func RiskLevel(score float32) Severity {
	switch {
	case score < 25:
		return SeverityLow
	case score < 50:
		return SeverityMedium
	case score < 75:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}
