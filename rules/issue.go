package rules

// VendorExtension describes a non-standard vendor parameter observed on
// the offending line (e.g. Bambu/Orca's H param on a temperature command).
type VendorExtension struct {
	Param string
	Value float64
}

// RuleIssue is a single deterministic detection record.
type RuleIssue struct {
	TypeCode         string
	Line             int
	Severity         Severity
	ShortDescription string
	LongDescription  string
	AutofixAllowed   bool
	Vendor           *VendorExtension
}
