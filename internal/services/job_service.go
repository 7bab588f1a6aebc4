package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/justsurfingit/eis/internal/database"
	"github.com/justsurfingit/eis/internal/location"
	"github.com/justsurfingit/eis/internal/models"
	"github.com/justsurfingit/eis/internal/parser"
	"github.com/justsurfingit/eis/internal/scraper"
)

type JobStore interface {
	FindJob(ctx context.Context, externalJobID string, ownerID uint) (*models.ScrapedJob, error)
	CreateJob(ctx context.Context, job *models.ScrapedJob) error
	AttachEmailToJob(ctx context.Context, jobID, emailID uint) error
	UpdateJob(ctx context.Context, job *models.ScrapedJob) error
}

// JobService owns the posting rows: dedup on (external id, owner) and the
// writes that fill them in.
type JobService struct {
	store JobStore
}

func NewJobService(store JobStore) *JobService {
	return &JobService{store: store}
}

// Record finds or creates the posting and links it to the email that
// mentioned it. created reports whether the row is new.
func (s *JobService) Record(ctx context.Context, externalID string, ownerID, emailID uint) (*models.ScrapedJob, bool, error) {
	job, err := s.store.FindJob(ctx, externalID, ownerID)
	created := false
	switch {
	case errors.Is(err, database.ErrNotFound):
		job = &models.ScrapedJob{ExternalJobID: externalID, OwnerID: ownerID, IsActive: true}
		if err := s.store.CreateJob(ctx, job); err != nil {
			return nil, false, err
		}
		created = true
	case err != nil:
		return nil, false, fmt.Errorf("find job %s: %w", externalID, err)
	}

	if err := s.store.AttachEmailToJob(ctx, job.ID, emailID); err != nil {
		return nil, false, err
	}
	return job, created, nil
}

// ApplyPosting fills a posting from a parsed digest block and marks it
// scraped.
func (s *JobService) ApplyPosting(ctx context.Context, job *models.ScrapedJob, p parser.IndeedPosting) error {
	job.Title = p.Title
	job.Company = p.Company
	job.Location = p.Location
	job.Description = p.Description
	job.SalaryMin = p.Salary.Min
	job.SalaryMax = p.Salary.Max
	job.URL = p.URL
	return s.markScraped(ctx, job)
}

// ApplyDetails fills a posting from a deep scrape and marks it scraped.
// Empty fields in d leave what is already stored.
func (s *JobService) ApplyDetails(ctx context.Context, job *models.ScrapedJob, d *scraper.Details) error {
	setIfEmpty := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setIfEmpty(&job.Title, d.Title)
	setIfEmpty(&job.Company, d.Company)
	setIfEmpty(&job.Location, d.Location)
	setIfEmpty(&job.Description, d.Description)
	setIfEmpty(&job.URL, d.URL)
	if d.SalaryMin != nil || d.SalaryMax != nil {
		job.SalaryMin, job.SalaryMax = d.SalaryMin, d.SalaryMax
	}
	if d.Deadline != nil {
		job.Deadline = d.Deadline
	}
	return s.markScraped(ctx, job)
}

func (s *JobService) markScraped(ctx context.Context, job *models.ScrapedJob) error {
	job.NormalizedLocation = location.Parse(job.Location)
	job.IsScraped = true
	job.IsFailed = false
	job.ScrapeError = nil
	return s.store.UpdateJob(ctx, job)
}

// MarkFailed records why a deep scrape failed. The posting leaves the
// unscraped sweep until someone clears the flag.
func (s *JobService) MarkFailed(ctx context.Context, job *models.ScrapedJob, cause error) error {
	msg := cause.Error()
	job.IsFailed = true
	job.ScrapeError = &msg
	return s.store.UpdateJob(ctx, job)
}
