// Package tier provides the static tier table and tier resolution.
// A tier is a reward bracket unlocked by cumulative referral count; each
// tier carries a point multiplier and fixed reward amounts.
package tier

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Tier holds the configuration for one reward bracket.
type Tier struct {
	Name           string
	RefsRequired   int             // referral count threshold, inclusive
	Multiplier     decimal.Decimal // applied to base rewards
	AdReward       int64           // base points per ad view
	ReferralReward int64           // base points credited per referral
}

// Table is an ordered list of tiers, ascending by RefsRequired.
// Exactly one entry must have a threshold of 0 (the default tier).
type Table struct {
	tiers []Tier
}

// NewTable builds a Table from the given tiers, sorting them by threshold.
func NewTable(tiers []Tier) *Table {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].RefsRequired < sorted[j].RefsRequired
	})
	return &Table{tiers: sorted}
}

// Validate checks the table invariants: non-empty, exactly one entry with
// threshold 0, no duplicate thresholds or names, and positive multipliers.
// Resolve depends on the zero-threshold entry: without it every count below
// the lowest configured threshold would fall through.
func (t *Table) Validate() error {
	if len(t.tiers) == 0 {
		return fmt.Errorf("tier table is empty")
	}

	zeroes := 0
	names := make(map[string]struct{}, len(t.tiers))
	for i, tr := range t.tiers {
		if tr.RefsRequired < 0 {
			return fmt.Errorf("tier %q has a negative threshold", tr.Name)
		}
		if tr.RefsRequired == 0 {
			zeroes++
		}
		if i > 0 && tr.RefsRequired == t.tiers[i-1].RefsRequired {
			return fmt.Errorf("tiers %q and %q share threshold %d", t.tiers[i-1].Name, tr.Name, tr.RefsRequired)
		}
		if _, ok := names[tr.Name]; ok {
			return fmt.Errorf("duplicate tier name %q", tr.Name)
		}
		names[tr.Name] = struct{}{}
		if !tr.Multiplier.IsPositive() {
			return fmt.Errorf("tier %q has a non-positive multiplier", tr.Name)
		}
	}
	if zeroes != 1 {
		return fmt.Errorf("tier table needs exactly one entry with threshold 0, got %d", zeroes)
	}
	return nil
}

// Default returns the production tier table.
func Default() *Table {
	return NewTable([]Tier{
		{Name: "Fresher", RefsRequired: 0, Multiplier: decimal.NewFromFloat(1.0), AdReward: 51, ReferralReward: 1000},
		{Name: "Brute", RefsRequired: 50, Multiplier: decimal.NewFromFloat(1.2), AdReward: 74, ReferralReward: 1500},
		{Name: "Silver", RefsRequired: 150, Multiplier: decimal.NewFromFloat(1.5), AdReward: 105, ReferralReward: 2000},
		{Name: "Gold", RefsRequired: 300, Multiplier: decimal.NewFromFloat(2.0), AdReward: 140, ReferralReward: 3000},
		{Name: "Platinum", RefsRequired: 500, Multiplier: decimal.NewFromFloat(3.0), AdReward: 210, ReferralReward: 5000},
	})
}

// Resolve returns the tier whose threshold is the highest one not exceeding
// referralCount, plus the number of additional referrals needed to reach the
// next tier (0 at the top tier). Threshold comparison is >=, so a count that
// matches a threshold exactly is promoted.
func (t *Table) Resolve(referralCount int) (Tier, int) {
	if referralCount < 0 {
		referralCount = 0
	}
	current := t.tiers[0]
	idx := 0
	for i, tr := range t.tiers {
		if referralCount >= tr.RefsRequired {
			current = tr
			idx = i
		} else {
			break
		}
	}
	if idx == len(t.tiers)-1 {
		return current, 0
	}
	return current, t.tiers[idx+1].RefsRequired - referralCount
}

// Lowest returns the default tier (threshold 0).
func (t *Table) Lowest() Tier {
	return t.tiers[0]
}

// ByName returns the tier with the given name.
func (t *Table) ByName(name string) (Tier, bool) {
	for _, tr := range t.tiers {
		if tr.Name == name {
			return tr, true
		}
	}
	return Tier{}, false
}

// All returns the tiers in ascending threshold order.
func (t *Table) All() []Tier {
	out := make([]Tier, len(t.tiers))
	copy(out, t.tiers)
	return out
}
