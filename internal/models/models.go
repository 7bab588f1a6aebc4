package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/justsurfingit/eis/internal/location"
)

// User owns alert emails and postings. EIS only reads users.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Email string `gorm:"uniqueIndex;not null" json:"email"`
}

// AlertEmail is written once per external message id and never updated.
type AlertEmail struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ExternalMessageID string    `gorm:"uniqueIndex;not null" json:"external_message_id"`
	Subject           string    `json:"subject"`
	Sender            string    `gorm:"index" json:"sender"`
	DateReceived      time.Time `json:"date_received"`
	Platform          Platform  `gorm:"type:varchar(32);not null" json:"platform"`
	Body              string    `gorm:"type:text" json:"body"`

	OwnerID      uint  `gorm:"index;not null" json:"owner_id"`
	ServiceLogID *uint `gorm:"index" json:"service_log_id"`
}

// ScrapedJob is a posting discovered in one or more alert emails. The pair
// (ExternalJobID, OwnerID) is unique.
type ScrapedJob struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ExternalJobID string `gorm:"uniqueIndex:idx_scraped_job_owner;not null" json:"external_job_id"`
	OwnerID       uint   `gorm:"uniqueIndex:idx_scraped_job_owner;not null" json:"owner_id"`

	IsScraped   bool    `gorm:"not null;default:false;index" json:"is_scraped"`
	IsFailed    bool    `gorm:"not null;default:false;index" json:"is_failed"`
	ScrapeError *string `gorm:"type:text" json:"scrape_error"`
	IsActive    bool    `gorm:"not null;default:true" json:"is_active"`

	Title       string     `json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	SalaryMin   *float64   `json:"salary_min"`
	SalaryMax   *float64   `json:"salary_max"`
	URL         string     `gorm:"type:text" json:"url"`
	Deadline    *time.Time `json:"deadline"`
	Company     string     `json:"company"`
	Location    string     `json:"location"`

	NormalizedLocation location.Location `gorm:"embedded;embeddedPrefix:location_" json:"normalized_location"`
}

// AlertEmailJob links an email to every posting it mentioned.
type AlertEmailJob struct {
	AlertEmailID uint      `gorm:"primaryKey" json:"alert_email_id"`
	ScrapedJobID uint      `gorm:"primaryKey;index" json:"scraped_job_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// ServiceLog records one orchestrator run. It is created when the run starts
// and updated in place when it ends.
type ServiceLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RunID        string    `gorm:"uniqueIndex;type:varchar(36)" json:"run_id"`
	Name         string    `json:"name"`
	RunDatetime  time.Time `json:"run_datetime"`
	RunDuration  float64   `json:"run_duration"`
	IsSuccess    bool      `json:"is_success"`
	ErrorMessage *string   `gorm:"type:text" json:"error_message"`
	JobSuccessN  int       `json:"job_success_n"`
	JobFailN     int       `json:"job_fail_n"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{&User{}, &AlertEmail{}, &ScrapedJob{}, &AlertEmailJob{}, &ServiceLog{}}
}
