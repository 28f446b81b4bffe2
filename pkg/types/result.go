package types

// IngestSummary reports the outcome of processing one playlist.
type IngestSummary struct {
	ProcessedCount   int      `json:"processedCount"`
	TotalCount       int      `json:"totalCount"`
	StoredPlaylistID string   `json:"storedPlaylistId"`
	Skipped          []string `json:"skipped,omitempty"`
}

// Profile is the subset of the user profile returned by token validation.
type Profile struct {
	Valid       bool   `json:"valid"`
	DisplayName string `json:"user"`
	UserID      string `json:"userId"`
}
