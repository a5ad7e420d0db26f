package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tomaszkw/docmeter/constants"
	"github.com/tomaszkw/docmeter/internal/async"
	"github.com/tomaszkw/docmeter/internal/common"
	"github.com/tomaszkw/docmeter/internal/entity"
	"github.com/tomaszkw/docmeter/internal/meter"
	"github.com/tomaszkw/docmeter/internal/quota"
	"github.com/tomaszkw/docmeter/internal/repository"
	"github.com/tomaszkw/docmeter/internal/secure"
	"github.com/tomaszkw/docmeter/internal/submit"
	"github.com/tomaszkw/docmeter/internal/track"
	"github.com/tomaszkw/docmeter/internal/utils"
)

// PageMeter is the metering behavior the service depends on.
type PageMeter interface {
	CountBatch(ctx context.Context, files []meter.FileInput) entity.BatchCount
}

// Admitter is the quota admission policy.
type Admitter interface {
	Admit(snapshot entity.QuotaSnapshot, pagesRequested int) error
}

// Uploader packages accepted input and stores it where the backend can
// fetch it. ZIP mechanics live with the collaborator, not here.
type Uploader interface {
	UploadBatch(ctx context.Context, sessionID string, files []meter.FileInput) (zipURL string, err error)
}

// JobSubmitter issues the idempotent job-creation request.
type JobSubmitter interface {
	Submit(ctx context.Context, req submit.Request) (*entity.Job, error)
}

// JobTracker subscribes to the push channel for one job.
type JobTracker interface {
	Track(jobID string, onUpdate track.UpdateFunc, onComplete track.CompleteFunc) (func(), error)
}

// DocumentGate is the two-phase password gate for encrypted documents.
type DocumentGate interface {
	IsEncrypted(data []byte) bool
	Verify(data []byte, password string) secure.VerifyResult
	Decrypt(data []byte, password string) ([]byte, error)
}

// Service orchestrates the ingestion pipeline: secure-gate verification,
// metering, quota admission, submission, persistence, and tracking.
type Service struct {
	meter     PageMeter
	gate      Admitter
	quotas    quota.SnapshotSource
	secure    DocumentGate
	uploader  Uploader
	submitter JobSubmitter
	tracker   JobTracker
	jobs      repository.JobRepository
	updates   async.Queue
	logger    *slog.Logger
}

// WithUpdateQueue moves status persistence onto a background queue.
// Without it, updates are written synchronously from the feed callback.
func (s *Service) WithUpdateQueue(q async.Queue) *Service {
	s.updates = q
	return s
}

func New(
	m PageMeter,
	gate Admitter,
	quotas quota.SnapshotSource,
	docGate DocumentGate,
	uploader Uploader,
	submitter JobSubmitter,
	tracker JobTracker,
	jobs repository.JobRepository,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		meter:     m,
		gate:      gate,
		quotas:    quotas,
		secure:    docGate,
		uploader:  uploader,
		submitter: submitter,
		tracker:   tracker,
		jobs:      jobs,
		logger:    logger,
	}
}

// IngestRequest carries one batch submission.
type IngestRequest struct {
	AccountID string
	SessionID string
	UserID    string
	Task      constants.TaskKind
	Files     []meter.FileInput
	// Passwords maps filenames to user-supplied passwords for encrypted
	// documents.
	Passwords map[string]string
}

// IngestResult is the admitted submission: the started job, the metering
// breakdown that was billed, and a detach releasing the status
// subscription (component teardown calls it early; otherwise it is a
// no-op once the job completes).
type IngestResult struct {
	Job    *entity.Job
	Count  entity.BatchCount
	Detach func()
}

// IngestBatch runs the full pipeline. Any error aborts the submission
// entirely; no partial job state is created client-side.
func (s *Service) IngestBatch(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if len(req.Files) == 0 {
		return nil, common.NewAppError("EMPTY_BATCH", "at least one file is required", common.ErrInvalidInput)
	}
	if _, ok := constants.ParseTaskKind(string(req.Task)); !ok {
		return nil, common.NewAppError("BAD_TASK", fmt.Sprintf("unknown task kind %q", req.Task), common.ErrInvalidInput)
	}

	files, err := s.unlockEncrypted(req.Files, req.Passwords)
	if err != nil {
		return nil, err
	}

	count := s.meter.CountBatch(ctx, files)
	s.logger.Info("batch metered",
		"session_id", req.SessionID, "files", len(files), "pages", count.Total, "warnings", len(count.Warnings))

	snapshot, err := s.quotas.Snapshot(ctx, req.AccountID)
	if err != nil {
		return nil, common.WrapError(err, "fetch quota snapshot")
	}
	if err := s.gate.Admit(snapshot, count.Total); err != nil {
		return nil, err
	}

	zipURL, err := s.uploader.UploadBatch(ctx, req.SessionID, files)
	if err != nil {
		return nil, common.WrapError(err, "upload batch")
	}

	job, err := s.submitter.Submit(ctx, submit.Request{
		Task:      req.Task,
		ZipURL:    zipURL,
		SessionID: req.SessionID,
		UserID:    req.UserID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.jobs.Insert(ctx, job); err != nil {
		// The backend accepted the job; a persistence failure must not
		// orphan it silently.
		s.logger.Error("job accepted by backend but not persisted", "job_id", job.ID, "error", err)
		return nil, common.WrapError(err, "persist job")
	}

	detach, err := s.tracker.Track(job.ID, s.applyUpdate, s.applyCompletion)
	if err != nil {
		return nil, common.WrapError(err, "subscribe to job updates")
	}

	return &IngestResult{Job: job, Count: count, Detach: detach}, nil
}

// CountBatch meters without submitting, for pre-flight cost display.
func (s *Service) CountBatch(ctx context.Context, files []meter.FileInput) entity.BatchCount {
	return s.meter.CountBatch(ctx, files)
}

// VerifyPassword checks a password against an encrypted document without
// decrypting it.
func (s *Service) VerifyPassword(data []byte, password string) secure.VerifyResult {
	return s.secure.Verify(data, password)
}

// GetJob returns the stored view of a job.
func (s *Service) GetJob(ctx context.Context, id string) (*entity.Job, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, common.NewAppError("BAD_JOB_ID", "job id is required", common.ErrInvalidInput)
	}
	return s.jobs.GetByID(ctx, id)
}

// ListSessionJobs returns the session's jobs, newest first. since is an
// optional YYYY-MM-DD lower bound on creation time.
func (s *Service) ListSessionJobs(ctx context.Context, sessionID, since string) ([]*entity.Job, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, common.NewAppError("BAD_SESSION_ID", "session id is required", common.ErrInvalidInput)
	}

	jobs, err := s.jobs.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if since == "" {
		return jobs, nil
	}

	cutoff, err := utils.ParseYMD(since)
	if err != nil {
		return nil, common.NewAppError("BAD_SINCE", fmt.Sprintf("since must be YYYY-MM-DD, got %q", since), common.ErrInvalidInput)
	}
	filtered := jobs[:0]
	for _, j := range jobs {
		if !j.CreatedAt.Before(cutoff) {
			filtered = append(filtered, j)
		}
	}
	return filtered, nil
}

// unlockEncrypted replaces encrypted PDFs with verified, decrypted copies.
// Decrypt is never attempted before Verify succeeds: a wrong guess must
// surface as the recoverable password signal, not a decryption failure.
func (s *Service) unlockEncrypted(files []meter.FileInput, passwords map[string]string) ([]meter.FileInput, error) {
	out := make([]meter.FileInput, len(files))
	copy(out, files)

	for i, f := range out {
		if constants.DetectFormat(f.Name) != constants.FormatPDF || !s.secure.IsEncrypted(f.Data) {
			continue
		}

		pw, ok := passwords[f.Name]
		if !ok {
			return nil, common.NewAppError("PASSWORD_REQUIRED",
				fmt.Sprintf("%s is encrypted and requires a password", f.Name), common.ErrPasswordIncorrect)
		}

		res := s.secure.Verify(f.Data, pw)
		if !res.Valid {
			if res.Reason == common.ErrPasswordIncorrect.Error() {
				return nil, common.NewAppError("PASSWORD_INCORRECT",
					fmt.Sprintf("wrong password for %s", f.Name), common.ErrPasswordIncorrect)
			}
			return nil, common.NewAppError("DOCUMENT_UNREADABLE",
				fmt.Sprintf("%s could not be opened: %s", f.Name, res.Reason), common.ErrInvalidInput)
		}

		clean, err := s.secure.Decrypt(f.Data, pw)
		if err != nil {
			return nil, common.WrapError(err, fmt.Sprintf("decrypt %s", f.Name))
		}
		out[i].Data = clean
		s.logger.Info("encrypted document unlocked", "file", f.Name, "pages", res.PageCount)
	}
	return out, nil
}

func (s *Service) applyUpdate(job entity.Job) {
	if s.updates != nil {
		_ = s.updates.Enqueue(context.Background(), async.Update{Job: job, ReceivedAt: time.Now()})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.jobs.ApplyUpdate(ctx, &job); err != nil {
		s.logger.Warn("job update not persisted", "job_id", job.ID, "error", err)
	}
}

func (s *Service) applyCompletion(job entity.Job) {
	if job.Status == constants.JobStatusFailed {
		s.logger.Warn("job failed", "job_id", job.ID, "error", utils.StrOrEmpty(job.ErrorMessage))
	} else {
		s.logger.Info("job completed", "job_id", job.ID, "status", job.Status)
	}
}
