// File: internal/usecase/prompts/prompts.go

// Package prompts embeds the canonical tier prompt templates. The embedded
// copies are the single source of truth for template registration; whatever
// sits in the database is validated against hashes of these at every use.
package prompts

import (
	_ "embed"

	"job-analysis-pipeline/internal/domain/model"
)

var (
	//go:embed tier1.md
	tier1 string
	//go:embed tier2.md
	tier2 string
	//go:embed tier3.md
	tier3 string
)

// CanonicalTemplates returns the embedded template text per tier.
func CanonicalTemplates() map[model.TierID]string {
	return map[model.TierID]string{
		model.Tier1: tier1,
		model.Tier2: tier2,
		model.Tier3: tier3,
	}
}
