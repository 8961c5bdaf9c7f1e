package models

import "time"

// Match is a single search hit as returned by the query server
type Match struct {
	Value    string `json:"value"`
	Distance int    `json:"distance"`
}

// ArchiveInfo summarises a persisted tree
type ArchiveInfo struct {
	Path        string    `json:"path"`
	Metric      string    `json:"metric"`
	InsertCount int       `json:"insert_count"` // Insert calls, duplicates included
	NodeCount   int       `json:"node_count"`   // Distinct stored elements
	Depth       int       `json:"depth"`        // -1 when empty
	SavedAt     time.Time `json:"saved_at,omitempty"`
}

// BuildRecord is one entry of an archive's build history
type BuildRecord struct {
	ID        int64     `json:"id"`
	Source    string    `json:"source"`
	BuiltAt   time.Time `json:"built_at"`
	LinesRead int       `json:"lines_read"`
	Inserted  int       `json:"inserted"`
	NodeCount int       `json:"node_count"`
}

// SearchResult is the query server's answer to one search
type SearchResult struct {
	Query     string  `json:"query"`
	Threshold int     `json:"threshold"`
	Matches   []Match `json:"matches"`
}
