package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justsurfingit/eis/internal/database"
	"github.com/justsurfingit/eis/internal/database/dbtest"
	"github.com/justsurfingit/eis/internal/location"
	"github.com/justsurfingit/eis/internal/models"
)

func newRepo(t *testing.T) *database.Repository {
	return database.NewRepository(dbtest.New(t))
}

func TestFindUserByEmail_IsCaseSensitive(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	require.NoError(t, db.Create(&models.User{Email: "alice@example.com"}).Error)
	repo := database.NewRepository(db)

	user, err := repo.FindUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)

	_, err = repo.FindUserByEmail(ctx, "Alice@example.com")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestAlertEmailRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	_, err := repo.FindAlertEmail(ctx, "msg-1")
	require.ErrorIs(t, err, database.ErrNotFound)

	email := &models.AlertEmail{
		ExternalMessageID: "msg-1",
		Subject:           "New jobs",
		Sender:            "alert@indeed.com",
		DateReceived:      time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Platform:          models.PlatformIndeed,
		Body:              "body",
		OwnerID:           1,
	}
	require.NoError(t, repo.CreateAlertEmail(ctx, email))
	assert.NotZero(t, email.ID)

	got, err := repo.FindAlertEmail(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, email.ID, got.ID)
	assert.Equal(t, models.PlatformIndeed, got.Platform)

	dup := &models.AlertEmail{ExternalMessageID: "msg-1", Platform: models.PlatformIndeed, OwnerID: 1}
	assert.Error(t, repo.CreateAlertEmail(ctx, dup))
}

func TestJobsAreUniquePerOwner(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	require.NoError(t, repo.CreateJob(ctx, &models.ScrapedJob{ExternalJobID: "123", OwnerID: 1}))
	require.NoError(t, repo.CreateJob(ctx, &models.ScrapedJob{ExternalJobID: "123", OwnerID: 2}))
	assert.Error(t, repo.CreateJob(ctx, &models.ScrapedJob{ExternalJobID: "123", OwnerID: 1}))

	job, err := repo.FindJob(ctx, "123", 2)
	require.NoError(t, err)
	assert.Equal(t, uint(2), job.OwnerID)
	assert.True(t, job.IsActive)
	assert.False(t, job.IsScraped)

	_, err = repo.FindJob(ctx, "123", 3)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestUpdateJobPersistsLocation(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	job := &models.ScrapedJob{ExternalJobID: "abc", OwnerID: 1}
	require.NoError(t, repo.CreateJob(ctx, job))

	lo, hi := 30000.0, 37000.0
	job.Title = "Laboratory Chemist"
	job.SalaryMin, job.SalaryMax = &lo, &hi
	job.IsScraped = true
	job.NormalizedLocation = location.Parse("London, UK")
	require.NoError(t, repo.UpdateJob(ctx, job))

	got, err := repo.FindJob(ctx, "abc", 1)
	require.NoError(t, err)
	assert.True(t, got.IsScraped)
	assert.Equal(t, "Laboratory Chemist", got.Title)
	require.NotNil(t, got.SalaryMax)
	assert.Equal(t, 37000.0, *got.SalaryMax)
	require.NotNil(t, got.NormalizedLocation.City)
	assert.Equal(t, "London", *got.NormalizedLocation.City)
	assert.Equal(t, "United Kingdom", *got.NormalizedLocation.Country)
	assert.Nil(t, got.NormalizedLocation.Postcode)
}

func TestEmailJobLinks(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	first := &models.AlertEmail{ExternalMessageID: "m1", Platform: models.PlatformLinkedIn, OwnerID: 1}
	second := &models.AlertEmail{ExternalMessageID: "m2", Platform: models.PlatformIndeed, OwnerID: 1}
	require.NoError(t, repo.CreateAlertEmail(ctx, first))
	require.NoError(t, repo.CreateAlertEmail(ctx, second))

	job := &models.ScrapedJob{ExternalJobID: "j1", OwnerID: 1}
	require.NoError(t, repo.CreateJob(ctx, job))

	require.NoError(t, repo.AttachEmailToJob(ctx, job.ID, first.ID))
	require.NoError(t, repo.AttachEmailToJob(ctx, job.ID, second.ID))
	require.NoError(t, repo.AttachEmailToJob(ctx, job.ID, first.ID))

	emails, err := repo.ListEmailsForJob(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, "m1", emails[0].ExternalMessageID)

	jobs, err := repo.ListJobsForEmail(ctx, second.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "j1", jobs[0].ExternalJobID)
}

func TestListUnscrapedJobs(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	pending := &models.ScrapedJob{ExternalJobID: "pending", OwnerID: 1}
	done := &models.ScrapedJob{ExternalJobID: "done", OwnerID: 1, IsScraped: true}
	failed := &models.ScrapedJob{ExternalJobID: "failed", OwnerID: 1, IsFailed: true}
	for _, j := range []*models.ScrapedJob{pending, done, failed} {
		require.NoError(t, repo.CreateJob(ctx, j))
	}

	jobs, err := repo.ListUnscrapedJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "pending", jobs[0].ExternalJobID)
}

func TestServiceLogLifecycle(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	repo := database.NewRepository(db)

	log := &models.ServiceLog{RunID: "run-1", Name: "email_scraping", RunDatetime: time.Now()}
	require.NoError(t, repo.CreateServiceLog(ctx, log))
	require.NotZero(t, log.ID)

	msg := "boom"
	log.RunDuration = 1.5
	log.ErrorMessage = &msg
	log.JobFailN = 2
	require.NoError(t, repo.UpdateServiceLog(ctx, log))

	var stored []models.ServiceLog
	require.NoError(t, db.Find(&stored).Error)
	require.Len(t, stored, 1)
	assert.Equal(t, 1.5, stored[0].RunDuration)
	assert.Equal(t, 2, stored[0].JobFailN)
	require.NotNil(t, stored[0].ErrorMessage)
	assert.Equal(t, "boom", *stored[0].ErrorMessage)
}
