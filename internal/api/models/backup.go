package models

// RestoreResponse summarizes a completed backup restore.
type RestoreResponse struct {
	// Tier names the parse strategy that succeeded: strict, repaired,
	// or extracted.
	Tier string `json:"tier"`

	// KeysWritten and KeysTotal count the keys written to storage versus
	// the keys found in the backup.
	KeysWritten int `json:"keysWritten"`
	KeysTotal   int `json:"keysTotal"`

	// Merged reports whether the backup was merged with existing data.
	Merged bool `json:"merged"`

	// Warnings lists non-fatal problems encountered while parsing.
	Warnings []string `json:"warnings,omitempty"`
}
