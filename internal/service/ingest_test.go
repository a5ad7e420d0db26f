package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tomaszkw/docmeter/constants"
	"github.com/tomaszkw/docmeter/internal/common"
	"github.com/tomaszkw/docmeter/internal/entity"
	"github.com/tomaszkw/docmeter/internal/meter"
	"github.com/tomaszkw/docmeter/internal/quota"
	"github.com/tomaszkw/docmeter/internal/secure"
	"github.com/tomaszkw/docmeter/internal/service"
	"github.com/tomaszkw/docmeter/internal/submit"
	"github.com/tomaszkw/docmeter/internal/track"
)

type mockQuotas struct {
	snapshotFunc func(ctx context.Context, accountID string) (entity.QuotaSnapshot, error)
}

func (m *mockQuotas) Snapshot(ctx context.Context, accountID string) (entity.QuotaSnapshot, error) {
	return m.snapshotFunc(ctx, accountID)
}

type mockUploader struct {
	uploadFunc func(ctx context.Context, sessionID string, files []meter.FileInput) (string, error)
}

func (m *mockUploader) UploadBatch(ctx context.Context, sessionID string, files []meter.FileInput) (string, error) {
	if m.uploadFunc != nil {
		return m.uploadFunc(ctx, sessionID, files)
	}
	return "https://files.example.com/batch.zip", nil
}

type mockSubmitter struct {
	submitFunc func(ctx context.Context, req submit.Request) (*entity.Job, error)
	calls      int
}

func (m *mockSubmitter) Submit(ctx context.Context, req submit.Request) (*entity.Job, error) {
	m.calls++
	return m.submitFunc(ctx, req)
}

type mockTracker struct {
	trackFunc func(jobID string, onUpdate track.UpdateFunc, onComplete track.CompleteFunc) (func(), error)
}

func (m *mockTracker) Track(jobID string, onUpdate track.UpdateFunc, onComplete track.CompleteFunc) (func(), error) {
	if m.trackFunc != nil {
		return m.trackFunc(jobID, onUpdate, onComplete)
	}
	return func() {}, nil
}

type mockJobs struct {
	inserted []*entity.Job
	updated  []*entity.Job
}

func (m *mockJobs) Insert(ctx context.Context, job *entity.Job) error {
	m.inserted = append(m.inserted, job)
	return nil
}

func (m *mockJobs) ApplyUpdate(ctx context.Context, job *entity.Job) error {
	m.updated = append(m.updated, job)
	return nil
}

func (m *mockJobs) GetByID(ctx context.Context, id string) (*entity.Job, error) {
	return nil, common.ErrNotFound
}

func (m *mockJobs) ListBySession(ctx context.Context, sessionID string) ([]*entity.Job, error) {
	return nil, nil
}

type mockDocGate struct {
	encrypted    map[string]bool
	validFor     string
	verifyCalls  int
	decryptCalls int
}

func (m *mockDocGate) IsEncrypted(data []byte) bool {
	return m.encrypted[string(data)]
}

func (m *mockDocGate) Verify(data []byte, password string) secure.VerifyResult {
	m.verifyCalls++
	if password == m.validFor {
		return secure.VerifyResult{Valid: true, PageCount: 1}
	}
	return secure.VerifyResult{Reason: common.ErrPasswordIncorrect.Error()}
}

func (m *mockDocGate) Decrypt(data []byte, password string) ([]byte, error) {
	m.decryptCalls++
	if password != m.validFor {
		return nil, errors.New("decrypt failed in a confusing way")
	}
	return []byte("%PDF-decrypted"), nil
}

func csvWithRows(n int) []byte {
	var b strings.Builder
	b.WriteString("id,name\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d,row\n", i)
	}
	return []byte(b.String())
}

func newService(quotas *mockQuotas, sub *mockSubmitter, tr *mockTracker, jobs *mockJobs, gate *mockDocGate) *service.Service {
	return service.New(
		meter.New(nil, 2),
		quota.NewGate(nil),
		quotas,
		gate,
		&mockUploader{},
		sub,
		tr,
		jobs,
		nil,
	)
}

func TestIngestBatchHappyPath(t *testing.T) {
	quotas := &mockQuotas{snapshotFunc: func(ctx context.Context, accountID string) (entity.QuotaSnapshot, error) {
		return entity.QuotaSnapshot{Tier: "pro", Allowance: 100, Consumed: 10}, nil
	}}
	sub := &mockSubmitter{submitFunc: func(ctx context.Context, req submit.Request) (*entity.Job, error) {
		if req.ZipURL != "https://files.example.com/batch.zip" {
			t.Errorf("unexpected zip url %q", req.ZipURL)
		}
		return &entity.Job{ID: "job-1", Task: req.Task, Status: constants.JobStatusStarted,
			SessionID: req.SessionID, UserID: req.UserID}, nil
	}}
	var gotUpdate track.UpdateFunc
	tr := &mockTracker{trackFunc: func(jobID string, onUpdate track.UpdateFunc, onComplete track.CompleteFunc) (func(), error) {
		gotUpdate = onUpdate
		return func() {}, nil
	}}
	jobs := &mockJobs{}
	svc := newService(quotas, sub, tr, jobs, &mockDocGate{})

	res, err := svc.IngestBatch(context.Background(), service.IngestRequest{
		AccountID: "acct-1",
		SessionID: "sess-1",
		UserID:    "user-1",
		Task:      constants.TaskAnalyze,
		Files: []meter.FileInput{
			{Name: "ledger.csv", Data: csvWithRows(101)},
			{Name: "scan.png", Data: []byte{1}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Count.Total != 3 {
		t.Errorf("metered total = %d, want 3", res.Count.Total)
	}
	if res.Job.ID != "job-1" || res.Job.Status != constants.JobStatusStarted {
		t.Errorf("unexpected job %+v", res.Job)
	}
	if len(jobs.inserted) != 1 {
		t.Fatalf("job not persisted")
	}

	// Tracker updates flow into the store.
	gotUpdate(entity.Job{ID: "job-1", Status: constants.JobStatusSucceeded})
	if len(jobs.updated) != 1 || jobs.updated[0].Status != constants.JobStatusSucceeded {
		t.Fatalf("tracker update not reconciled: %+v", jobs.updated)
	}
}

func TestIngestBatchQuotaDenied(t *testing.T) {
	// A CSV with a header and 101 data rows meters to 2 pages; with only
	// 1 page remaining the batch must be denied as too large.
	quotas := &mockQuotas{snapshotFunc: func(ctx context.Context, accountID string) (entity.QuotaSnapshot, error) {
		return entity.QuotaSnapshot{Tier: "free", Allowance: 10, Consumed: 9}, nil
	}}
	sub := &mockSubmitter{submitFunc: func(ctx context.Context, req submit.Request) (*entity.Job, error) {
		return nil, errors.New("must not be called")
	}}
	jobs := &mockJobs{}
	svc := newService(quotas, sub, &mockTracker{}, jobs, &mockDocGate{})

	_, err := svc.IngestBatch(context.Background(), service.IngestRequest{
		AccountID: "acct-1",
		Task:      constants.TaskAnalyze,
		Files:     []meter.FileInput{{Name: "ledger.csv", Data: csvWithRows(101)}},
	})

	var qe *common.QuotaError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QuotaError, got %v", err)
	}
	if qe.Reason != common.DenyBatchTooLarge {
		t.Errorf("reason = %s, want %s", qe.Reason, common.DenyBatchTooLarge)
	}
	if sub.calls != 0 {
		t.Errorf("denied batch must never be submitted")
	}
	if len(jobs.inserted) != 0 {
		t.Errorf("denied batch must not create client-side job state")
	}
}

func TestIngestBatchWrongPasswordNeverDecrypts(t *testing.T) {
	gate := &mockDocGate{
		encrypted: map[string]bool{"ENCRYPTED": true},
		validFor:  "hunter2",
	}
	quotas := &mockQuotas{snapshotFunc: func(ctx context.Context, accountID string) (entity.QuotaSnapshot, error) {
		return entity.QuotaSnapshot{Allowance: 100}, nil
	}}
	sub := &mockSubmitter{submitFunc: func(ctx context.Context, req submit.Request) (*entity.Job, error) {
		return nil, errors.New("must not be called")
	}}
	svc := newService(quotas, sub, &mockTracker{}, &mockJobs{}, gate)

	_, err := svc.IngestBatch(context.Background(), service.IngestRequest{
		AccountID: "acct-1",
		Task:      constants.TaskAnalyze,
		Files:     []meter.FileInput{{Name: "secret.pdf", Data: []byte("ENCRYPTED")}},
		Passwords: map[string]string{"secret.pdf": "wrong-guess"},
	})

	if !errors.Is(err, common.ErrPasswordIncorrect) {
		t.Fatalf("expected password error, got %v", err)
	}
	if gate.decryptCalls != 0 {
		t.Fatalf("decrypt must never run when verify fails, ran %d times", gate.decryptCalls)
	}
	if gate.verifyCalls != 1 {
		t.Fatalf("expected 1 verify call, got %d", gate.verifyCalls)
	}
}

func TestIngestBatchDecryptsAfterVerify(t *testing.T) {
	gate := &mockDocGate{
		encrypted: map[string]bool{"ENCRYPTED": true},
		validFor:  "hunter2",
	}
	quotas := &mockQuotas{snapshotFunc: func(ctx context.Context, accountID string) (entity.QuotaSnapshot, error) {
		return entity.QuotaSnapshot{Allowance: 100}, nil
	}}
	var submitted []meter.FileInput
	uploader := &mockUploader{uploadFunc: func(ctx context.Context, sessionID string, files []meter.FileInput) (string, error) {
		submitted = files
		return "https://files.example.com/batch.zip", nil
	}}
	sub := &mockSubmitter{submitFunc: func(ctx context.Context, req submit.Request) (*entity.Job, error) {
		return &entity.Job{ID: "job-2", Status: constants.JobStatusStarted}, nil
	}}
	svc := service.New(meter.New(nil, 2), quota.NewGate(nil), quotas, gate, uploader, sub, &mockTracker{}, &mockJobs{}, nil)

	_, err := svc.IngestBatch(context.Background(), service.IngestRequest{
		AccountID: "acct-1",
		Task:      constants.TaskAnalyze,
		Files:     []meter.FileInput{{Name: "secret.pdf", Data: []byte("ENCRYPTED")}},
		Passwords: map[string]string{"secret.pdf": "hunter2"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gate.verifyCalls != 1 || gate.decryptCalls != 1 {
		t.Fatalf("expected verify then decrypt, got verify=%d decrypt=%d", gate.verifyCalls, gate.decryptCalls)
	}
	if len(submitted) != 1 || string(submitted[0].Data) != "%PDF-decrypted" {
		t.Fatalf("uploaded batch must carry the decrypted copy")
	}
}

func TestIngestBatchMissingPassword(t *testing.T) {
	gate := &mockDocGate{encrypted: map[string]bool{"ENCRYPTED": true}, validFor: "pw"}
	quotas := &mockQuotas{snapshotFunc: func(ctx context.Context, accountID string) (entity.QuotaSnapshot, error) {
		return entity.QuotaSnapshot{Allowance: 100}, nil
	}}
	svc := newService(quotas, &mockSubmitter{submitFunc: func(ctx context.Context, req submit.Request) (*entity.Job, error) {
		return nil, errors.New("must not be called")
	}}, &mockTracker{}, &mockJobs{}, gate)

	_, err := svc.IngestBatch(context.Background(), service.IngestRequest{
		AccountID: "acct-1",
		Task:      constants.TaskAnalyze,
		Files:     []meter.FileInput{{Name: "secret.pdf", Data: []byte("ENCRYPTED")}},
	})
	if !errors.Is(err, common.ErrPasswordIncorrect) {
		t.Fatalf("expected password-required error, got %v", err)
	}
}

func TestIngestBatchEmptyAndBadTask(t *testing.T) {
	svc := newService(
		&mockQuotas{snapshotFunc: func(ctx context.Context, accountID string) (entity.QuotaSnapshot, error) {
			return entity.QuotaSnapshot{}, nil
		}},
		&mockSubmitter{submitFunc: func(ctx context.Context, req submit.Request) (*entity.Job, error) {
			return nil, errors.New("must not be called")
		}},
		&mockTracker{}, &mockJobs{}, &mockDocGate{})

	if _, err := svc.IngestBatch(context.Background(), service.IngestRequest{Task: constants.TaskAnalyze}); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("empty batch: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.IngestBatch(context.Background(), service.IngestRequest{
		Task:  constants.TaskKind("REFORMAT"),
		Files: []meter.FileInput{{Name: "a.csv", Data: []byte("x")}},
	}); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("bad task: expected ErrInvalidInput, got %v", err)
	}
}

func TestIngestBatchSubmitFailureCreatesNoState(t *testing.T) {
	quotas := &mockQuotas{snapshotFunc: func(ctx context.Context, accountID string) (entity.QuotaSnapshot, error) {
		return entity.QuotaSnapshot{Allowance: 100}, nil
	}}
	sub := &mockSubmitter{submitFunc: func(ctx context.Context, req submit.Request) (*entity.Job, error) {
		return nil, &common.SubmissionError{StatusCode: 503, Body: "backend draining"}
	}}
	jobs := &mockJobs{}
	svc := newService(quotas, sub, &mockTracker{}, jobs, &mockDocGate{})

	_, err := svc.IngestBatch(context.Background(), service.IngestRequest{
		AccountID: "acct-1",
		Task:      constants.TaskAnalyze,
		Files:     []meter.FileInput{{Name: "scan.png", Data: []byte{1}}},
	})

	var se *common.SubmissionError
	if !errors.As(err, &se) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if len(jobs.inserted) != 0 {
		t.Fatalf("failed submission must not persist a job")
	}
}
