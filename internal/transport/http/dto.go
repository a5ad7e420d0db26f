package httptransport

import (
	"encoding/base64"
	"fmt"

	"github.com/tomaszkw/docmeter/internal/entity"
	"github.com/tomaszkw/docmeter/internal/meter"
	"github.com/tomaszkw/docmeter/internal/utils"
)

type fileBody struct {
	Name    string `json:"name"`
	Content string `json:"content"` // base64
}

type createBatchBody struct {
	AccountID string            `json:"account_id"`
	SessionID string            `json:"session_id"`
	UserID    string            `json:"user_id"`
	Task      string            `json:"task"`
	Files     []fileBody        `json:"files"`
	Passwords map[string]string `json:"passwords,omitempty"`
}

type countBody struct {
	Files []fileBody `json:"files"`
}

type verifyBody struct {
	File     fileBody `json:"file"`
	Password string   `json:"password"`
}

type jobResponse struct {
	ID           string  `json:"id"`
	Task         string  `json:"task"`
	Status       string  `json:"status"`
	ResultURL    *string `json:"result_url,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
	SessionID    string  `json:"session_id"`
	UserID       string  `json:"user_id"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

type createBatchResponse struct {
	Job   jobResponse       `json:"job"`
	Count entity.BatchCount `json:"count"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeFiles(in []fileBody) ([]meter.FileInput, error) {
	out := make([]meter.FileInput, 0, len(in))
	for _, f := range in {
		data, err := base64.StdEncoding.DecodeString(f.Content)
		if err != nil {
			return nil, fmt.Errorf("file %q: content is not valid base64", f.Name)
		}
		out = append(out, meter.FileInput{Name: f.Name, Data: data})
	}
	return out, nil
}

func toJobResponse(j *entity.Job) jobResponse {
	return jobResponse{
		ID:           j.ID,
		Task:         string(j.Task),
		Status:       string(j.Status),
		ResultURL:    j.ResultURL,
		ErrorMessage: j.ErrorMessage,
		SessionID:    j.SessionID,
		UserID:       j.UserID,
		CreatedAt:    utils.FormatTimestamp(j.CreatedAt),
		UpdatedAt:    utils.FormatTimestamp(j.UpdatedAt),
	}
}
