package suppression

import "github.com/kursadbilgin/outreach-dispatch/internal/domain"

// Oracle answers suppression lookups against a per-run snapshot.
type Oracle struct {
	entries map[string]domain.SuppressionReason
}

func NewOracle(entries []domain.SuppressionEntry) *Oracle {
	o := &Oracle{entries: make(map[string]domain.SuppressionReason, len(entries))}
	for _, entry := range entries {
		o.Add(entry.Address, entry.Reason)
	}
	return o
}

// Add records an address for the rest of the run. The first reason recorded
// for an address is kept.
func (o *Oracle) Add(address string, reason domain.SuppressionReason) {
	if o == nil {
		return
	}
	if o.entries == nil {
		o.entries = make(map[string]domain.SuppressionReason)
	}
	key := domain.NormalizeAddress(address)
	if key == "" {
		return
	}
	if _, exists := o.entries[key]; exists {
		return
	}
	o.entries[key] = reason
}

func (o *Oracle) IsSuppressed(address string) bool {
	_, ok := o.Reason(address)
	return ok
}

func (o *Oracle) Reason(address string) (domain.SuppressionReason, bool) {
	if o == nil {
		return "", false
	}
	reason, ok := o.entries[domain.NormalizeAddress(address)]
	return reason, ok
}

func (o *Oracle) Len() int {
	if o == nil {
		return 0
	}
	return len(o.entries)
}
