// Package delay holds messages back for a delay tier before they reach the broker.
package delay

import (
	"fmt"
	"strings"
	"time"
)

const TierMetadataKey = "delay_tier"

const DefaultTiers = "1s 5s 10s 30s 1m 2m 3m 4m 5m 6m 7m 8m 9m 10m 20m 30m 1h 2h"

// Tiers maps a 1-based tier index to a delay.
type Tiers []time.Duration

func ParseTiers(value string) (Tiers, error) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return nil, fmt.Errorf("no delay tiers in %q", value)
	}

	tiers := make(Tiers, 0, len(fields))
	for _, f := range fields {
		d, err := time.ParseDuration(f)
		if err != nil {
			return nil, fmt.Errorf("invalid delay tier %q: %w", f, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("delay tier %q must be positive", f)
		}
		tiers = append(tiers, d)
	}

	return tiers, nil
}

func MustParseTiers(value string) Tiers {
	tiers, err := ParseTiers(value)
	if err != nil {
		panic(err)
	}
	return tiers
}

func (t Tiers) Duration(tier int) (time.Duration, error) {
	if tier < 1 || tier > len(t) {
		return 0, fmt.Errorf("delay tier %d out of range 1..%d", tier, len(t))
	}
	return t[tier-1], nil
}
