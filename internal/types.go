package internal

import "time"

// JobState is a step of the per-document translation state machine.
type JobState string

const (
	StateLoaded            JobState = "loaded"
	StatePerPartProcessing JobState = "per_part_processing"
	StateRebuilt           JobState = "rebuilt"
	StateWrittenTemp       JobState = "written_temp"
	StateCommitted         JobState = "committed"
	StateFailed            JobState = "failed"
)

// Job describes one document translation run.
type Job struct {
	ID         string    `json:"id"`
	SourcePath string    `json:"source_path"`
	DestPath   string    `json:"dest_path"`
	SourceLang string    `json:"source_lang"`
	TargetLang string    `json:"target_lang"`
	Backend    string    `json:"backend"`
	State      JobState  `json:"state"`
	Error      string    `json:"error,omitempty"`
	Parts      int       `json:"parts"`
	Skipped    int       `json:"skipped"`
	Sentences  int       `json:"sentences"`
	Unique     int       `json:"unique"`
	CacheHits  int       `json:"cache_hits"`
	Translated int       `json:"translated"`
	Batches    int       `json:"batches"`
	Flagged    int       `json:"flagged"`
	Bytes      int64     `json:"bytes"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}
