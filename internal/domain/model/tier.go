package model

import "fmt"

// TierID identifies one of the three sequential analysis passes.
type TierID int

const (
	Tier1 TierID = 1 // core extraction: skills, compensation, seniority, logistics
	Tier2 TierID = 2 // inferential: stress signals, red flags, implicit requirements
	Tier3 TierID = 3 // strategic: prestige scoring, positioning advice
)

func (t TierID) Valid() bool { return t >= Tier1 && t <= Tier3 }

// Prior returns the tier this tier depends on, or 0 for Tier1.
func (t TierID) Prior() TierID { return t - 1 }

func (t TierID) String() string { return fmt.Sprintf("tier%d", int(t)) }

// ParseTier converts an operator-supplied tier number.
func ParseTier(n int) (TierID, error) {
	t := TierID(n)
	if !t.Valid() {
		return 0, fmt.Errorf("tier must be 1, 2 or 3; got %d", n)
	}
	return t, nil
}
