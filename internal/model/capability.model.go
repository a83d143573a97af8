package model

import "time"

// Feature flag names as reported by the RCS capability probe.
const (
	FeatureRevocation         = "REVOCATION"
	FeatureRichCardStandalone = "RICHCARD_STANDALONE"
	FeatureRichCardCarousel   = "RICHCARD_CAROUSEL"
	FeatureActionCalendar     = "ACTION_CREATE_CALENDAR_EVENT"
	FeatureActionDial         = "ACTION_DIAL"
	FeatureActionURL          = "ACTION_OPEN_URL"
	FeatureActionShareLoc     = "ACTION_SHARE_LOCATION"
	FeatureActionViewLoc      = "ACTION_VIEW_LOCATION"
	FeaturePaymentsV1         = "PAYMENTS_V1"
)

// CapabilityRecord caches the outcome of a capability probe for one
// (agent, recipient address) pair. Records never expire on their own;
// only an explicit re-probe updates them.
type CapabilityRecord struct {
	ID      string    `json:"id"`
	AgentID string    `json:"agent"`
	MSISDN  string    `json:"msisdn"`
	// SupportsRCS false means the probe came back not-found/forbidden;
	// the record is still persisted so the address is never probed twice.
	SupportsRCS bool `json:"supports_rcs"`

	SupportsRevocation         bool `json:"supports_revocation"`
	SupportsRichCardStandalone bool `json:"supports_rich_card_standalone"`
	SupportsRichCardCarousel   bool `json:"supports_rich_card_carousel"`
	SupportsActionCalendar     bool `json:"supports_action_calendar"`
	SupportsActionDial         bool `json:"supports_action_dial"`
	SupportsActionURL          bool `json:"supports_action_url"`
	SupportsActionShareLoc     bool `json:"supports_action_share_location"`
	SupportsActionViewLoc      bool `json:"supports_action_view_location"`
	SupportsPaymentsV1         bool `json:"supports_payments_v1"`

	ProbedAt time.Time `json:"probed_at"`
}

// SetFeatures overwrites every feature flag from a probe feature list.
// Flags absent from the list are cleared, so a re-probe fully replaces
// the previous record.
func (r *CapabilityRecord) SetFeatures(features []string) {
	set := make(map[string]bool, len(features))
	for _, f := range features {
		set[f] = true
	}
	r.SupportsRevocation = set[FeatureRevocation]
	r.SupportsRichCardStandalone = set[FeatureRichCardStandalone]
	r.SupportsRichCardCarousel = set[FeatureRichCardCarousel]
	r.SupportsActionCalendar = set[FeatureActionCalendar]
	r.SupportsActionDial = set[FeatureActionDial]
	r.SupportsActionURL = set[FeatureActionURL]
	r.SupportsActionShareLoc = set[FeatureActionShareLoc]
	r.SupportsActionViewLoc = set[FeatureActionViewLoc]
	r.SupportsPaymentsV1 = set[FeaturePaymentsV1]
}

// VSMSKey caches the Verified SMS public key discovered for one
// recipient. An empty PublicKey records a definitive "not enrolled"
// answer so the address is not looked up again.
type VSMSKey struct {
	ID        string    `json:"id"`
	MSISDN    string    `json:"msisdn"`
	PublicKey string    `json:"public_key,omitempty"`
	ProbedAt  time.Time `json:"probed_at"`
}
