package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomaszkw/docmeter/constants"
	"github.com/tomaszkw/docmeter/internal/common"
	"github.com/tomaszkw/docmeter/internal/endpoint"
	"github.com/tomaszkw/docmeter/internal/entity"
)

// Request describes one job submission. The input batch has already been
// packaged and uploaded; ZipURL locates it for the backend.
type Request struct {
	Task      constants.TaskKind
	ZipURL    string
	SessionID string
	UserID    string
}

type jobCreateBody struct {
	Task      string `json:"task"`
	ZipURL    string `json:"zipUrl"`
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type jobCreateResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// Submitter issues idempotent job-creation requests against the resolved
// backend endpoint.
type Submitter struct {
	resolver *endpoint.Resolver
	client   *http.Client
	logger   *slog.Logger
}

func New(resolver *endpoint.Resolver, client *http.Client, logger *slog.Logger) *Submitter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{resolver: resolver, client: client, logger: logger}
}

// Submit creates a job and returns it in STARTED state. Every call carries
// a fresh idempotency token; the token is reused across the internal
// endpoint retry so the backend can collapse a duplicate delivery of the
// same logical submission. Deduplication across calls is never done
// client-side.
func (s *Submitter) Submit(ctx context.Context, req Request) (*entity.Job, error) {
	idempotencyKey := uuid.New().String()
	start := time.Now()

	var job *entity.Job
	err := s.resolver.WithRetry(ctx, func(ctx context.Context, base string) error {
		j, err := s.post(ctx, base, req, idempotencyKey)
		if err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrConfigUnavailable) {
			return nil, err
		}
		var rejected *common.SubmissionError
		if errors.As(err, &rejected) {
			s.logger.Warn("job submission rejected",
				"status", rejected.StatusCode, "task", req.Task, "session_id", req.SessionID)
			return nil, err
		}
		if endpoint.IsTransportErr(err) {
			return nil, fmt.Errorf("%w: %v", common.ErrNetwork, err)
		}
		return nil, err
	}

	s.logger.Info("job submitted",
		"job_id", job.ID, "task", req.Task, "session_id", req.SessionID,
		"elapsed_ms", time.Since(start).Milliseconds())
	return job, nil
}

func (s *Submitter) post(ctx context.Context, base string, req Request, idempotencyKey string) (*entity.Job, error) {
	body := jobCreateBody{
		Task:      string(req.Task),
		ZipURL:    req.ZipURL,
		SessionID: req.SessionID,
		UserID:    req.UserID,
	}
	bs, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}

	url := strings.TrimRight(base, "/") + "/jobs"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Idempotency-Key", idempotencyKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		// The backend's body is surfaced verbatim.
		return nil, &common.SubmissionError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var jr jobCreateResponse
	if err := json.Unmarshal(raw, &jr); err != nil {
		return nil, fmt.Errorf("decode job response: %w", err)
	}
	if jr.JobID == "" {
		return nil, fmt.Errorf("job response missing job_id")
	}

	now := time.Now().UTC()
	return &entity.Job{
		ID:        jr.JobID,
		Task:      req.Task,
		Status:    constants.JobStatusStarted,
		SessionID: req.SessionID,
		UserID:    req.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
