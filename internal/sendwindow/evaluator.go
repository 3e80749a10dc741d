// Package sendwindow decides whether a recipient may be contacted at their local wall-clock time.
package sendwindow

import (
	"fmt"
	"strings"
	"time"

	// Embedded zone database so containers without /usr/share/zoneinfo still resolve zones.
	_ "time/tzdata"
)

// Block reasons reported by Evaluate.
const (
	ReasonAllowed    = "allowed"
	ReasonSleepGuard = "sleep-guard"
	ReasonSundayHold = "sunday-hold"
	ReasonEveningCap = "evening-cap"
)

const (
	sleepStartHour   = 21
	sleepEndHour     = 8
	eveningCapHour   = 19
	sundayOpensAfter = 19.5
)

// Decision is the outcome of a send window evaluation.
type Decision struct {
	Allowed bool
	// Reason is the rule that matched. A forced decision keeps the reason it would have had.
	Reason       string
	Forced       bool
	Jurisdiction string
	Timezone     string
	// DefaultZone is true when the jurisdiction did not resolve and the default zone was used.
	DefaultZone bool
	Local       time.Time
	Weekday     time.Weekday
	Hour        int
	Minute      int
}

// Evaluator resolves jurisdictions to zones and applies the send window rules.
type Evaluator struct {
	zones       map[string]*time.Location
	defaultLoc  *time.Location
	defaultName string
}

// NewEvaluator loads every zone in table up front. An empty defaultZone uses DefaultZone.
func NewEvaluator(defaultZone string, table map[string]string) (*Evaluator, error) {
	defaultZone = strings.TrimSpace(defaultZone)
	if defaultZone == "" {
		defaultZone = DefaultZone
	}
	defaultLoc, err := time.LoadLocation(defaultZone)
	if err != nil {
		return nil, fmt.Errorf("invalid default timezone %q: %w", defaultZone, err)
	}

	if table == nil {
		table = DefaultZones
	}

	cache := make(map[string]*time.Location, len(table))
	zones := make(map[string]*time.Location, len(table))
	for code, zoneName := range table {
		loc, ok := cache[zoneName]
		if !ok {
			loc, err = time.LoadLocation(zoneName)
			if err != nil {
				return nil, fmt.Errorf("invalid timezone %q for jurisdiction %q: %w", zoneName, code, err)
			}
			cache[zoneName] = loc
		}
		zones[normalizeCode(code)] = loc
	}

	return &Evaluator{
		zones:       zones,
		defaultLoc:  defaultLoc,
		defaultName: defaultZone,
	}, nil
}

// Resolve returns the location for a jurisdiction and whether the default zone was used.
func (e *Evaluator) Resolve(jurisdiction string) (*time.Location, bool) {
	if loc, ok := e.zones[normalizeCode(jurisdiction)]; ok {
		return loc, false
	}
	return e.defaultLoc, true
}

// Evaluate applies the sleep guard, Sunday hold and evening cap, in that order.
// force allows the send regardless of the rules.
func (e *Evaluator) Evaluate(jurisdiction string, now time.Time, force bool) Decision {
	loc, usedDefault := e.Resolve(jurisdiction)
	local := now.In(loc)

	d := Decision{
		Jurisdiction: normalizeCode(jurisdiction),
		Timezone:     loc.String(),
		DefaultZone:  usedDefault,
		Local:        local,
		Weekday:      local.Weekday(),
		Hour:         local.Hour(),
		Minute:       local.Minute(),
	}
	d.Reason = rule(d.Weekday, d.Hour, d.Minute)
	d.Allowed = d.Reason == ReasonAllowed

	if force {
		d.Forced = true
		d.Allowed = true
	}
	return d
}

// DefaultTimezone is the configured fallback zone name.
func (e *Evaluator) DefaultTimezone() string {
	return e.defaultName
}

func rule(weekday time.Weekday, hour, minute int) string {
	if hour >= sleepStartHour || hour < sleepEndHour {
		return ReasonSleepGuard
	}

	if weekday == time.Sunday {
		if float64(hour)+float64(minute)/60 < sundayOpensAfter {
			return ReasonSundayHold
		}
		return ReasonAllowed
	}

	if hour >= eveningCapHour {
		return ReasonEveningCap
	}
	return ReasonAllowed
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
