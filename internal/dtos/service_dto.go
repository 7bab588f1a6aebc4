package dtos

import "time"

// RunStats summarizes one ingestion run.
type RunStats struct {
	RunID           string    `json:"run_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`

	UsersProcessed int `json:"users_processed"`
	EmailsFound    int `json:"emails_found"`
	EmailsNew      int `json:"emails_new"`
	EmailsExisting int `json:"emails_existing"`
	EmailsFailed   int `json:"emails_failed"`
	EmailsSkipped  int `json:"emails_skipped"`

	JobsExtracted int `json:"jobs_extracted"`
	JobsScraped   int `json:"jobs_scraped"`
	JobsFailed    int `json:"jobs_failed"`
	LinkedInJobs  int `json:"linkedin_jobs"`
	IndeedJobs    int `json:"indeed_jobs"`

	IsSuccess    bool   `json:"is_success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// ServiceStatus is the scheduler's view for the control API.
type ServiceStatus struct {
	Running       bool       `json:"running"`
	PeriodSeconds float64    `json:"period_seconds"`
	LastRun       *time.Time `json:"last_run"`
	NextRun       *time.Time `json:"next_run"`
	RunsCompleted int        `json:"runs_completed"`
	LastStats     *RunStats  `json:"last_stats"`
}

type StartServiceRequest struct {
	PeriodHours float64 `json:"period_hours" binding:"omitempty,gt=0"`
}

type RunOnceRequest struct {
	LookbackDays int `json:"lookback_days" binding:"omitempty,gt=0"`
}
