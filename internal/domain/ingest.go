package domain

import "time"

// IngestedFile is the receipt kept for every accepted billing export.
type IngestedFile struct {
	ID          string    `json:"id"`
	Format      string    `json:"format"`
	FileHash    string    `json:"file_hash"`
	RecordCount int       `json:"record_count"`
	IngestedAt  time.Time `json:"ingested_at"`
}
