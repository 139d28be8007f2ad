package service

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"receiptkeeper/pkg/config"

	"go.uber.org/zap"
)

// storageKeyTimeFormat matches an extended ISO-8601 UTC timestamp with
// microseconds, so two uploads of the same filename in one batch get
// distinct object keys.
const storageKeyTimeFormat = "2006-01-02T15:04:05.000000"

type StorageClient struct {
	httpClient *http.Client
	config     *config.StorageConfig
	logger     *zap.Logger
}

func NewStorageClient(httpClient *http.Client, cfg *config.StorageConfig, logger *zap.Logger) *StorageClient {
	return &StorageClient{
		httpClient: httpClient,
		config:     cfg,
		logger:     logger,
	}
}

// Upload pushes the raw file bytes to object storage under a
// timestamp-qualified key and returns the durable URL of the object.
func (c *StorageClient) Upload(ctx context.Context, fileName, mimeType string, content []byte) (string, error) {
	key := time.Now().UTC().Format(storageKeyTimeFormat) + "_" + fileName
	fileURL := c.config.BaseURL + key

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fileURL, bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("x-upsert", "true")
	req.Header.Set("Content-Type", mimeType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.Error("File upload failed",
			zap.String("file", fileName),
			zap.Int("status", resp.StatusCode),
		)
		return "", &UploadError{Status: resp.StatusCode, Body: string(bodyBytes)}
	}

	c.logger.Info("File uploaded", zap.String("url", fileURL))
	return fileURL, nil
}
