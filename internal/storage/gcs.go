package storage

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/tomaszkw/docmeter/internal/meter"
)

// GCSUploader packages a batch as a ZIP object in a bucket and returns
// the URL the backend fetches it from.
type GCSUploader struct {
	client *gcs.Client
	bucket string
	logger *slog.Logger
}

func NewGCSUploader(client *gcs.Client, bucket string, logger *slog.Logger) *GCSUploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &GCSUploader{client: client, bucket: bucket, logger: logger}
}

func (u *GCSUploader) UploadBatch(ctx context.Context, sessionID string, files []meter.FileInput) (string, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.Name)
		if err != nil {
			return "", fmt.Errorf("add %s to archive: %w", f.Name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return "", fmt.Errorf("write %s to archive: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalize archive: %w", err)
	}

	objectName := fmt.Sprintf("batches/%s/%s.zip", sessionID, uuid.New().String())
	start := time.Now()

	obj := u.client.Bucket(u.bucket).Object(objectName)
	ow := obj.NewWriter(ctx)
	ow.ContentType = "application/zip"
	if _, err := ow.Write(buf.Bytes()); err != nil {
		_ = ow.Close()
		return "", fmt.Errorf("upload batch archive: %w", err)
	}
	if err := ow.Close(); err != nil {
		return "", fmt.Errorf("finalize batch upload: %w", err)
	}

	u.logger.Info("batch archive uploaded",
		"object", objectName, "files", len(files), "bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds())
	return fmt.Sprintf("gs://%s/%s", u.bucket, objectName), nil
}
