package constants

import (
	"strings"
)

type DocType string

const (
	Contract         DocType = "Contract"
	NDA              DocType = "NDA"
	Lease            DocType = "Lease"
	Employment       DocType = "Employment"
	ServiceAgreement DocType = "ServiceAgreement"
	Invoice          DocType = "Invoice"
	Other            DocType = "Other"
)

var allDocTypes = []DocType{
	Contract,
	NDA,
	Lease,
	Employment,
	ServiceAgreement,
	Invoice,
	Other,
}

func AsStringSlice() []string {
	result := make([]string, len(allDocTypes))
	for i, dt := range allDocTypes {
		result[i] = string(dt)
	}
	return result
}

func Canonicalize(input string) (DocType, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]DocType{
		"agreement":                 Contract,
		"general contract":          Contract,
		"non-disclosure agreement":  NDA,
		"nondisclosure agreement":   NDA,
		"confidentiality agreement": NDA,
		"rental agreement":          Lease,
		"lease agreement":           Lease,
		"tenancy agreement":         Lease,
		"employment agreement":      Employment,
		"employment contract":       Employment,
		"offer letter":              Employment,
		"msa":                       ServiceAgreement,
		"master service agreement":  ServiceAgreement,
		"master services agreement": ServiceAgreement,
		"sow":                       ServiceAgreement,
		"statement of work":         ServiceAgreement,
		"services agreement":        ServiceAgreement,
		"consulting agreement":      ServiceAgreement,
		"bill":                      Invoice,
		"purchase order":            Invoice,
	}

	if dt, ok := synonyms[normalized]; ok {
		return dt, true
	}

	// check if it matches any doc type string
	for _, dt := range allDocTypes {
		if normalized == strings.ToLower(string(dt)) {
			return dt, true
		}
	}

	return Other, false
}
