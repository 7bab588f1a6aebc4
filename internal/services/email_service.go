package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/justsurfingit/eis/internal/database"
	"github.com/justsurfingit/eis/internal/dtos"
	"github.com/justsurfingit/eis/internal/mail"
	"github.com/justsurfingit/eis/internal/models"
	"github.com/justsurfingit/eis/internal/notify"
	"github.com/justsurfingit/eis/internal/parser"
	"github.com/justsurfingit/eis/internal/scraper"
)

const serviceLogName = "email_scraping"

// Store is everything a scraping run reads or writes.
type Store interface {
	UserFinder
	JobStore
	ListUsers(ctx context.Context) ([]models.User, error)
	FindAlertEmail(ctx context.Context, externalMessageID string) (*models.AlertEmail, error)
	CreateAlertEmail(ctx context.Context, email *models.AlertEmail) error
	ListUnscrapedJobs(ctx context.Context) ([]models.ScrapedJob, error)
	ListEmailsForJob(ctx context.Context, jobID uint) ([]models.AlertEmail, error)
	CreateServiceLog(ctx context.Context, log *models.ServiceLog) error
	UpdateServiceLog(ctx context.Context, log *models.ServiceLog) error
}

// IndeedIDs turns Indeed tracking links into job keys.
type IndeedIDs interface {
	ExtractJobIDs(ctx context.Context, body string) []string
	ResolveJobID(ctx context.Context, link string) (string, error)
}

type ScraperRegistry interface {
	For(platform models.Platform) (scraper.Scraper, error)
}

type EmailConfig struct {
	AlertSenders []string
	InboxOnly    bool
	OnUnmatched  UnmatchedPolicy
}

// EmailService runs one ingestion pass: alert emails in, postings out.
type EmailService struct {
	store     Store
	transport mail.Transport
	matcher   *MatcherService
	jobs      *JobService
	indeed    IndeedIDs
	scrapers  ScraperRegistry
	notifiers []notify.Notifier
	cfg       EmailConfig
	log       zerolog.Logger
	now       func() time.Time
}

func NewEmailService(store Store, transport mail.Transport, indeed IndeedIDs, scrapers ScraperRegistry, cfg EmailConfig, log zerolog.Logger, notifiers ...notify.Notifier) *EmailService {
	if cfg.OnUnmatched == "" {
		cfg.OnUnmatched = UnmatchedFail
	}
	return &EmailService{
		store:     store,
		transport: transport,
		matcher:   NewMatcherService(store),
		jobs:      NewJobService(store),
		indeed:    indeed,
		scrapers:  scrapers,
		notifiers: notifiers,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// RunScraping performs one full run and always returns its statistics. The
// ServiceLog row is finalized even when the run fails or panics.
func (s *EmailService) RunScraping(ctx context.Context, lookbackDays int) (stats dtos.RunStats) {
	stats = dtos.RunStats{RunID: uuid.NewString(), StartTime: s.now()}
	log := s.log.With().Str("run_id", stats.RunID).Logger()
	svcLog := &models.ServiceLog{RunID: stats.RunID, Name: serviceLogName, RunDatetime: stats.StartTime}

	defer func() {
		if r := recover(); r != nil {
			stats.IsSuccess = false
			stats.ErrorMessage = fmt.Sprintf("panic: %v", r)
			log.Error().Interface("panic", r).Msg("scraping run aborted")
		}
		s.finish(context.WithoutCancel(ctx), log, svcLog, &stats)
	}()

	log.Info().Int("lookback_days", lookbackDays).Msg("scraping run started")
	if err := s.store.CreateServiceLog(ctx, svcLog); err != nil {
		stats.ErrorMessage = fmt.Sprintf("create service log: %v", err)
		log.Error().Err(err).Msg("could not create service log")
		return stats
	}

	if err := s.run(ctx, log, svcLog.ID, lookbackDays, &stats); err != nil {
		stats.ErrorMessage = err.Error()
		log.Error().Err(err).Msg("scraping run failed")
		return stats
	}
	stats.IsSuccess = true
	return stats
}

func (s *EmailService) finish(ctx context.Context, log zerolog.Logger, svcLog *models.ServiceLog, stats *dtos.RunStats) {
	stats.EndTime = s.now()
	stats.DurationSeconds = stats.EndTime.Sub(stats.StartTime).Seconds()

	svcLog.RunDuration = stats.DurationSeconds
	svcLog.IsSuccess = stats.IsSuccess
	svcLog.JobSuccessN = stats.JobsScraped
	svcLog.JobFailN = stats.JobsFailed
	if stats.ErrorMessage != "" {
		msg := stats.ErrorMessage
		svcLog.ErrorMessage = &msg
	}
	if err := s.store.UpdateServiceLog(ctx, svcLog); err != nil {
		log.Error().Err(err).Msg("could not finalize service log")
	}

	log.Info().
		Bool("success", stats.IsSuccess).
		Float64("duration_seconds", stats.DurationSeconds).
		Int("users", stats.UsersProcessed).
		Int("emails_new", stats.EmailsNew).
		Int("emails_existing", stats.EmailsExisting).
		Int("emails_failed", stats.EmailsFailed).
		Int("jobs_extracted", stats.JobsExtracted).
		Int("jobs_scraped", stats.JobsScraped).
		Int("jobs_failed", stats.JobsFailed).
		Msg("scraping run finished")

	for _, n := range s.notifiers {
		if err := n.NotifyRun(ctx, *stats); err != nil {
			log.Warn().Err(err).Str("notifier", n.Name()).Msg("run notification failed")
		}
	}
}

func (s *EmailService) run(ctx context.Context, log zerolog.Logger, logID uint, lookbackDays int, stats *dtos.RunStats) error {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		ulog := log.With().Str("user", user.Email).Logger()
		if err := s.processUser(ctx, ulog, user, logID, lookbackDays, stats); err != nil {
			ulog.Error().Err(err).Msg("skipping user")
			continue
		}
		stats.UsersProcessed++
	}

	return s.sweepUnscraped(ctx, log, stats)
}

func (s *EmailService) processUser(ctx context.Context, log zerolog.Logger, user models.User, logID uint, lookbackDays int, stats *dtos.RunStats) error {
	q := mail.Query{
		Recipient:    user.Email,
		Senders:      s.cfg.AlertSenders,
		LookbackDays: lookbackDays,
		InboxOnly:    s.cfg.InboxOnly,
	}
	ids, err := s.transport.ListMessageIDs(ctx, q)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	log.Info().Int("messages", len(ids)).Str("query", q.String()).Msg("alert emails listed")
	stats.EmailsFound += len(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		mlog := log.With().Str("message_id", id).Logger()
		if err := s.processMessage(ctx, mlog, user, id, logID, stats); err != nil {
			stats.EmailsFailed++
			mlog.Error().Err(err).Msg("skipping message")
		}
	}
	return nil
}

func (s *EmailService) processMessage(ctx context.Context, log zerolog.Logger, mailbox models.User, id string, logID uint, stats *dtos.RunStats) error {
	_, err := s.store.FindAlertEmail(ctx, id)
	switch {
	case err == nil:
		stats.EmailsExisting++
		log.Debug().Msg("alert email already stored")
		return nil
	case !errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("find alert email: %w", err)
	}

	msg, err := s.transport.FetchMessage(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	platform, err := parser.Classify(msg.From, msg.Body)
	if err != nil {
		return err
	}
	log = log.With().Str("platform", string(platform)).Logger()

	owner, err := s.matcher.ResolveOwner(ctx, msg.To, mailbox)
	if err != nil {
		if errors.Is(err, ErrUnmatchedRecipient) && s.cfg.OnUnmatched == UnmatchedSkip {
			stats.EmailsSkipped++
			log.Info().Err(err).Msg("ignoring alert for unknown recipient")
			return nil
		}
		return err
	}

	email := &models.AlertEmail{
		ExternalMessageID: msg.ID,
		Subject:           msg.Subject,
		Sender:            strings.ToLower(mail.NormalizeAddress(msg.From)),
		DateReceived:      msg.Date,
		Platform:          platform,
		Body:              msg.Body,
		OwnerID:           owner.ID,
	}
	if logID != 0 {
		email.ServiceLogID = &logID
	}
	if email.ExternalMessageID == "" {
		email.ExternalMessageID = id
	}
	if err := s.store.CreateAlertEmail(ctx, email); err != nil {
		return fmt.Errorf("save alert email: %w", err)
	}
	stats.EmailsNew++
	log.Info().Str("subject", email.Subject).Msg("alert email stored")

	switch platform {
	case models.PlatformLinkedIn:
		s.recordLinkedIn(ctx, log, email, stats)
	case models.PlatformIndeed:
		s.recordIndeed(ctx, log, email, stats)
	}
	return nil
}

func (s *EmailService) recordLinkedIn(ctx context.Context, log zerolog.Logger, email *models.AlertEmail, stats *dtos.RunStats) {
	for _, id := range parser.ExtractLinkedInJobIDs(email.Body) {
		if _, _, err := s.jobs.Record(ctx, id, email.OwnerID, email.ID); err != nil {
			log.Error().Err(err).Str("job_id", id).Msg("could not record job")
			continue
		}
		stats.JobsExtracted++
		stats.LinkedInJobs++
	}
}

// recordIndeed takes the rich path: each digest block already carries the
// posting's data, so only the job key needs resolving. Digests the block
// parser does not understand fall back to bare id extraction.
func (s *EmailService) recordIndeed(ctx context.Context, log zerolog.Logger, email *models.AlertEmail, stats *dtos.RunStats) {
	postings := parser.ParseIndeedDigest(email.Body)
	if len(postings) == 0 {
		for _, id := range s.indeed.ExtractJobIDs(ctx, email.Body) {
			if _, _, err := s.jobs.Record(ctx, id, email.OwnerID, email.ID); err != nil {
				log.Error().Err(err).Str("job_id", id).Msg("could not record job")
				continue
			}
			stats.JobsExtracted++
			stats.IndeedJobs++
		}
		return
	}

	for _, p := range postings {
		id, err := s.indeed.ResolveJobID(ctx, p.URL)
		if err != nil {
			log.Warn().Err(err).Str("title", p.Title).Msg("could not resolve indeed job id")
			continue
		}
		job, _, err := s.jobs.Record(ctx, id, email.OwnerID, email.ID)
		if err != nil {
			log.Error().Err(err).Str("job_id", id).Msg("could not record job")
			continue
		}
		stats.JobsExtracted++
		stats.IndeedJobs++
		if job.IsScraped {
			continue
		}
		if err := s.jobs.ApplyPosting(ctx, job, p); err != nil {
			log.Error().Err(err).Str("job_id", id).Msg("could not save posting data")
			continue
		}
		stats.JobsScraped++
	}
}

// sweepUnscraped deep-scrapes every posting still waiting for data. The
// platform comes from the first email that mentioned the posting.
func (s *EmailService) sweepUnscraped(ctx context.Context, log zerolog.Logger, stats *dtos.RunStats) error {
	jobs, err := s.store.ListUnscrapedJobs(ctx)
	if err != nil {
		return fmt.Errorf("list unscraped jobs: %w", err)
	}
	if len(jobs) > 0 {
		log.Info().Int("jobs", len(jobs)).Msg("scraping pending jobs")
	}

	for i := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		job := &jobs[i]
		jlog := log.With().Str("job_id", job.ExternalJobID).Uint("owner_id", job.OwnerID).Logger()

		emails, err := s.store.ListEmailsForJob(ctx, job.ID)
		if err != nil || len(emails) == 0 {
			jlog.Warn().Err(err).Msg("job has no source email")
			continue
		}

		if err := s.scrapeJob(ctx, job, emails[0].Platform); err != nil {
			stats.JobsFailed++
			jlog.Warn().Err(err).Msg("job scrape failed")
			if err := s.jobs.MarkFailed(ctx, job, err); err != nil {
				jlog.Error().Err(err).Msg("could not record scrape failure")
			}
			continue
		}
		stats.JobsScraped++
	}
	return nil
}

func (s *EmailService) scrapeJob(ctx context.Context, job *models.ScrapedJob, platform models.Platform) error {
	scr, err := s.scrapers.For(platform)
	if err != nil {
		return err
	}
	details, err := scr.Scrape(ctx, job.ExternalJobID)
	if err != nil {
		return err
	}
	return s.jobs.ApplyDetails(ctx, job, details)
}
