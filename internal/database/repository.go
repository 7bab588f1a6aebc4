package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/justsurfingit/eis/internal/models"
)

// ErrNotFound is returned by the Find methods when no row matches.
var ErrNotFound = errors.New("record not found")

// Repository is the gorm-backed store for users, alert emails, postings and
// service logs.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *Repository) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// FindUserByEmail matches the address exactly, including case.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *Repository) FindAlertEmail(ctx context.Context, externalMessageID string) (*models.AlertEmail, error) {
	var email models.AlertEmail
	err := r.db.WithContext(ctx).Where("external_message_id = ?", externalMessageID).First(&email).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &email, nil
}

func (r *Repository) CreateAlertEmail(ctx context.Context, email *models.AlertEmail) error {
	if err := r.db.WithContext(ctx).Create(email).Error; err != nil {
		return fmt.Errorf("create alert email %s: %w", email.ExternalMessageID, err)
	}
	return nil
}

func (r *Repository) FindJob(ctx context.Context, externalJobID string, ownerID uint) (*models.ScrapedJob, error) {
	var job models.ScrapedJob
	err := r.db.WithContext(ctx).
		Where("external_job_id = ? AND owner_id = ?", externalJobID, ownerID).
		First(&job).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

func (r *Repository) CreateJob(ctx context.Context, job *models.ScrapedJob) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("create job %s: %w", job.ExternalJobID, err)
	}
	return nil
}

// AttachEmailToJob records that email mentioned job. Attaching twice is a
// no-op.
func (r *Repository) AttachEmailToJob(ctx context.Context, jobID, emailID uint) error {
	link := models.AlertEmailJob{AlertEmailID: emailID, ScrapedJobID: jobID}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
	if err != nil {
		return fmt.Errorf("attach email %d to job %d: %w", emailID, jobID, err)
	}
	return nil
}

// UpdateJob writes every column of job back.
func (r *Repository) UpdateJob(ctx context.Context, job *models.ScrapedJob) error {
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("update job %d: %w", job.ID, err)
	}
	return nil
}

// ListUnscrapedJobs returns postings that have neither been scraped nor
// marked failed, oldest first.
func (r *Repository) ListUnscrapedJobs(ctx context.Context) ([]models.ScrapedJob, error) {
	var jobs []models.ScrapedJob
	err := r.db.WithContext(ctx).
		Where("is_scraped = ? AND is_failed = ?", false, false).
		Order("id").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("list unscraped jobs: %w", err)
	}
	return jobs, nil
}

// ListEmailsForJob returns the emails linked to a job in the order they were
// first stored.
func (r *Repository) ListEmailsForJob(ctx context.Context, jobID uint) ([]models.AlertEmail, error) {
	var emails []models.AlertEmail
	err := r.db.WithContext(ctx).
		Joins("JOIN alert_email_jobs ON alert_email_jobs.alert_email_id = alert_emails.id").
		Where("alert_email_jobs.scraped_job_id = ?", jobID).
		Order("alert_emails.id").
		Find(&emails).Error
	if err != nil {
		return nil, fmt.Errorf("list emails for job %d: %w", jobID, err)
	}
	return emails, nil
}

func (r *Repository) ListJobsForEmail(ctx context.Context, emailID uint) ([]models.ScrapedJob, error) {
	var jobs []models.ScrapedJob
	err := r.db.WithContext(ctx).
		Joins("JOIN alert_email_jobs ON alert_email_jobs.scraped_job_id = scraped_jobs.id").
		Where("alert_email_jobs.alert_email_id = ?", emailID).
		Order("scraped_jobs.id").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("list jobs for email %d: %w", emailID, err)
	}
	return jobs, nil
}

func (r *Repository) CreateServiceLog(ctx context.Context, log *models.ServiceLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("create service log: %w", err)
	}
	return nil
}

func (r *Repository) UpdateServiceLog(ctx context.Context, log *models.ServiceLog) error {
	if err := r.db.WithContext(ctx).Save(log).Error; err != nil {
		return fmt.Errorf("update service log %d: %w", log.ID, err)
	}
	return nil
}
