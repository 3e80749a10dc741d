package domain

import "strings"

// SuppressionReason enumerates why an address is excluded from a run.
type SuppressionReason string

const (
	SuppressionBounced      SuppressionReason = "bounced"
	SuppressionBlocked      SuppressionReason = "blocked"
	SuppressionUnsubscribed SuppressionReason = "unsubscribed"
	SuppressionAlreadySent  SuppressionReason = "already_sent"
)

func (r SuppressionReason) String() string { return string(r) }

// SuppressionEntry is a read-only snapshot entry for the duration of one run.
type SuppressionEntry struct {
	Address string
	Reason  SuppressionReason
}

// NormalizeAddress trims and lower-cases an email address for set membership.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
