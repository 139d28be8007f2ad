package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"receiptkeeper/internal/models"
	"receiptkeeper/pkg/config"

	"go.uber.org/zap"
)

// TableClient writes documents to the Supabase table REST endpoints. Inserts
// are best effort: a failed insert comes back as a PersistenceError for the
// caller to fold into the item's outcome, never as a batch abort.
type TableClient struct {
	httpClient *http.Client
	config     *config.TablesConfig
	logger     *zap.Logger
}

func NewTableClient(httpClient *http.Client, cfg *config.TablesConfig, logger *zap.Logger) *TableClient {
	return &TableClient{
		httpClient: httpClient,
		config:     cfg,
		logger:     logger,
	}
}

// InsertRecord posts one extracted receipt document to the records table.
func (c *TableClient) InsertRecord(ctx context.Context, fields *models.ExtractedFields) error {
	return c.insert(ctx, c.config.RecordsURL, fields)
}

// InsertStatus posts the rendered batch summary to the status table.
func (c *TableClient) InsertStatus(ctx context.Context, userID, uploadResult string) error {
	return c.insert(ctx, c.config.StatusURL, &models.BatchStatus{
		UserID:       userID,
		UploadResult: uploadResult,
	})
}

func (c *TableClient) insert(ctx context.Context, tableURL string, document any) error {
	jsonData, err := json.Marshal(document)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tableURL, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.config.APIKey)
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.Error("Table insert failed",
			zap.String("url", tableURL),
			zap.Int("status", resp.StatusCode),
		)
		return &PersistenceError{Status: resp.StatusCode, Body: string(bodyBytes)}
	}

	return nil
}
