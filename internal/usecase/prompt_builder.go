// File: internal/usecase/prompt_builder.go
package usecase

import (
	"fmt"
	"strings"

	"job-analysis-pipeline/internal/domain/model"
)

// priorContext carries the earlier tiers' payloads for one job, keyed by tier.
type priorContext map[model.TierID]string

// buildBatchPrompt renders the user message for one batch. Each job sits in
// its own block delimited by a JOB_ID marker; the whole set is fenced between
// BEGIN JOBS / END JOBS so the template can instruct the model to treat
// everything inside as data, not instructions.
func buildBatchPrompt(jobs []*model.JobRecord, prior map[string]priorContext) string {
	var b strings.Builder
	b.WriteString("BEGIN JOBS\n")
	for _, j := range jobs {
		b.WriteString("\n---\n")
		fmt.Fprintf(&b, "JOB_ID: %s\n", j.ID)
		fmt.Fprintf(&b, "TITLE: %s\n", j.Title)
		if j.Company != "" {
			fmt.Fprintf(&b, "COMPANY: %s\n", j.Company)
		}
		b.WriteString("DESCRIPTION:\n")
		b.WriteString(j.Description)
		b.WriteString("\n")

		if ctx := prior[j.ID]; len(ctx) > 0 {
			for _, tier := range []model.TierID{model.Tier1, model.Tier2} {
				if payload, ok := ctx[tier]; ok {
					fmt.Fprintf(&b, "PRIOR_ANALYSIS_%s:\n%s\n", strings.ToUpper(tier.String()), payload)
				}
			}
		}
	}
	b.WriteString("\n---\nEND JOBS\n")
	return b.String()
}
