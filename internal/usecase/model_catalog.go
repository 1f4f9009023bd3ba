// File: internal/usecase/model_catalog.go
package usecase

import "job-analysis-pipeline/internal/domain/model"

// Catalog of models the selector may choose between. Quality is a relative
// capability score in [0,1]; prices are micro-dollars per 1k tokens.
//
// The entries mirror what the providers actually charge; exact numbers only
// matter relative to each other for cost estimation and floor enforcement.
var modelCatalog = map[string]model.ModelSpec{
	"gpt-4o": {
		ID:                    "gpt-4o",
		Quality:               0.95,
		OutputCeiling:         8192,
		InputPricePerKMicros:  2500,
		OutputPricePerKMicros: 10000,
	},
	"gpt-4o-mini": {
		ID:                    "gpt-4o-mini",
		Quality:               0.78,
		OutputCeiling:         8192,
		InputPricePerKMicros:  150,
		OutputPricePerKMicros: 600,
	},
	"gemini-2.0-flash": {
		ID:                    "gemini-2.0-flash",
		Quality:               0.72,
		OutputCeiling:         8192,
		InputPricePerKMicros:  100,
		OutputPricePerKMicros: 400,
	},
	"gemini-1.5-flash-8b": {
		ID:                    "gemini-1.5-flash-8b",
		Quality:               0.58,
		OutputCeiling:         8192,
		InputPricePerKMicros:  40,
		OutputPricePerKMicros: 150,
	},
}

// LookupModel returns the catalog entry, falling back to a conservative
// mid-range spec for ids the catalog does not know.
func LookupModel(id string) model.ModelSpec {
	if spec, ok := modelCatalog[id]; ok {
		return spec
	}
	return model.ModelSpec{
		ID:                    id,
		Quality:               0.70,
		OutputCeiling:         8192,
		InputPricePerKMicros:  500,
		OutputPricePerKMicros: 1500,
	}
}

// EstimateCostMicro prices a prospective call from token counts.
func EstimateCostMicro(modelID string, inputTokens, outputTokens int) int64 {
	spec := LookupModel(modelID)
	return int64(inputTokens)*spec.InputPricePerKMicros/1000 +
		int64(outputTokens)*spec.OutputPricePerKMicros/1000
}
