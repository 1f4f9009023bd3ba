package model

import "time"

// JobRecord is a scraped job posting. Rows are written by the ingestion
// service; the pipeline only reads them and attaches TierResults.
type JobRecord struct {
	ID          string
	Title       string
	Company     string
	Description string
	SourceURL   string
	SourceName  string
	ScrapedAt   time.Time
}
