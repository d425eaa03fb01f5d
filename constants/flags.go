package constants

// Well-known anomaly flag names. Profiles may enable others; these are the ones
// the triage engine treats specially.
const (
	FlagIllegible   = "illegible"
	FlagCrossedOut  = "crossed_out"
	FlagHandwritten = "handwritten"
	FlagLowContrast = "low_contrast"
)

// SevereFlags escalate review priority when detected with high confidence.
var SevereFlags = map[string]struct{}{
	FlagIllegible:  {},
	FlagCrossedOut: {},
}

// Threshold keys every profile must define.
const (
	ThresholdOCR        = "ocr"
	ThresholdExtraction = "extraction"
)

// DefaultItemType is assigned to spans when neither the capability nor the
// profile names a type.
const DefaultItemType = "line"

// TenantSettingKey is the transaction-local Postgres setting RLS policies read.
const TenantSettingKey = "app.tenant_id"
