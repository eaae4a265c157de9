package backfill

import "time"

// Config holds the backfill command configuration.
type Config struct {
	ExportPath string
	StatePath  string // default: ~/.flowjudge/backfill-state.json
	MinTurns   int    // skip conversations with fewer complete turns
	DryRun     bool   // analyze without persisting
	BatchSize  int    // conversations analyzed before pausing, 0 disables pausing
	BatchPause time.Duration
	Since      time.Time
	Until      time.Time
}

// ConversationSummary is the per-conversation line of a backfill report.
type ConversationSummary struct {
	ID         string
	Title      string
	Date       string
	Turns      int
	Efficiency float64
	Fallbacks  int
	Errors     int
}
