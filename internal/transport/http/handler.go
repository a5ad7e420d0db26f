package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/tomaszkw/docmeter/constants"
	"github.com/tomaszkw/docmeter/internal/common"
	"github.com/tomaszkw/docmeter/internal/service"
)

type Handler struct {
	service *service.Service
	logger  *zap.Logger
}

func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: svc, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.URL.Path, "/")
	parts := strings.Split(path, "/")

	switch {
	case len(parts) == 1 && parts[0] == "batches":
		if r.Method == http.MethodPost {
			h.handleCreateBatch(w, r)
			return
		}
	case len(parts) == 2 && parts[0] == "jobs":
		if r.Method == http.MethodGet {
			h.handleGetJob(w, r, parts[1])
			return
		}
	case len(parts) == 3 && parts[0] == "sessions" && parts[2] == "jobs":
		if r.Method == http.MethodGet {
			h.handleListSessionJobs(w, r, parts[1])
			return
		}
	case len(parts) == 2 && parts[0] == "files" && parts[1] == "count":
		if r.Method == http.MethodPost {
			h.handleCount(w, r)
			return
		}
	case len(parts) == 2 && parts[0] == "files" && parts[1] == "verify":
		if r.Method == http.MethodPost {
			h.handleVerify(w, r)
			return
		}
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
		return
	}
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

func (h *Handler) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var body createBatchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}

	files, err := decodeFiles(body.Files)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FILE", err.Error())
		return
	}

	res, err := h.service.IngestBatch(r.Context(), service.IngestRequest{
		AccountID: body.AccountID,
		SessionID: body.SessionID,
		UserID:    body.UserID,
		Task:      constants.TaskKind(body.Task),
		Files:     files,
		Passwords: body.Passwords,
	})
	if err != nil {
		h.logger.Warn("batch ingestion failed", zap.String("session_id", body.SessionID), zap.Error(err))
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createBatchResponse{
		Job:   toJobResponse(res.Job),
		Count: res.Count,
	})
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request, id string) {
	job, err := h.service.GetJob(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (h *Handler) handleListSessionJobs(w http.ResponseWriter, r *http.Request, sessionID string) {
	jobs, err := h.service.ListSessionJobs(r.Context(), sessionID, r.URL.Query().Get("since"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCount(w http.ResponseWriter, r *http.Request) {
	var body countBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	files, err := decodeFiles(body.Files)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FILE", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.service.CountBatch(r.Context(), files))
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var body verifyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	files, err := decodeFiles([]fileBody{body.File})
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FILE", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.service.VerifyPassword(files[0].Data, body.Password))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var qe *common.QuotaError
	if errors.As(err, &qe) {
		writeError(w, http.StatusPaymentRequired, string(qe.Reason), qe.Error())
		return
	}
	var se *common.SubmissionError
	if errors.As(err, &se) {
		writeError(w, http.StatusBadGateway, "SUBMISSION_REJECTED", se.Error())
		return
	}
	switch {
	case errors.Is(err, common.ErrPasswordIncorrect):
		writeError(w, http.StatusBadRequest, "PASSWORD_INCORRECT", err.Error())
	case errors.Is(err, common.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
	case errors.Is(err, common.ErrConfigUnavailable):
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "service temporarily unavailable")
	case errors.Is(err, common.ErrNetwork):
		writeError(w, http.StatusBadGateway, "NETWORK_ERROR", "could not reach the processing backend")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}
