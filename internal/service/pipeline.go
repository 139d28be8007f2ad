package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"receiptkeeper/internal/models"
	"receiptkeeper/pkg/config"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pipeline runs the per-receipt chain
// upload -> extract fields -> OCR -> fingerprint -> persist
// for every item of a batch concurrently, then renders the batch summary and
// writes it to the status table best effort.
type Pipeline struct {
	storage        *StorageClient
	llm            *LLMClient
	tables         *TableClient
	maxConcurrency int
	logger         *zap.Logger
}

func NewPipeline(
	storage *StorageClient,
	llm *LLMClient,
	tables *TableClient,
	cfg *config.PipelineConfig,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		storage:        storage,
		llm:            llm,
		tables:         tables,
		maxConcurrency: cfg.MaxConcurrency,
		logger:         logger,
	}
}

// NewHTTPClient builds the connection-pooled HTTP client shared by every
// outbound call the pipeline's clients make. No timeout: a hung downstream
// call stalls its item, which is accepted at this layer.
func NewHTTPClient() *http.Client {
	return &http.Client{}
}

// ProcessBatch fans out one pipeline run per item, waits for all of them,
// and returns the rendered summary. Item failures become fail outcomes in
// the summary; the only error ProcessBatch itself returns is an empty batch.
// The batch is assumed single-user: the status row is keyed to the first
// item's user id.
func (p *Pipeline) ProcessBatch(ctx context.Context, items []models.ReceiptItem) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("empty batch: no receipt items to process")
	}

	p.logger.Info("Starting batch", zap.Int("receipts", len(items)))

	outcomes := make([]models.Outcome, len(items))

	eg, gctx := errgroup.WithContext(ctx)
	if p.maxConcurrency > 0 {
		eg.SetLimit(p.maxConcurrency)
	}
	for i := range items {
		i := i
		eg.Go(func() error {
			outcomes[i] = p.processReceipt(gctx, &items[i])
			return nil
		})
	}
	_ = eg.Wait()

	summary := buildSummary(outcomes)

	// Best effort: a failed status write is logged and does not change the
	// summary handed back to the caller.
	if err := p.tables.InsertStatus(ctx, items[0].UserID, summary); err != nil {
		p.logger.Error("Failed to save batch status",
			zap.String("user_id", items[0].UserID),
			zap.Error(err),
		)
	} else {
		p.logger.Info("Batch status saved", zap.String("user_id", items[0].UserID))
	}

	return summary, nil
}

// processReceipt runs one item through the pipeline stages. The first stage
// error short-circuits the rest and becomes a fail outcome.
func (p *Pipeline) processReceipt(ctx context.Context, item *models.ReceiptItem) models.Outcome {
	p.logger.Info("Uploading file", zap.String("file", item.FileName))
	fileURL, err := p.storage.Upload(ctx, item.FileName, item.MimeType, item.FileContent)
	if err != nil {
		return p.fail(item, nil, err)
	}

	p.logger.Info("Extracting fields", zap.String("file", item.FileName))
	fields, err := p.llm.ExtractFields(ctx, item.ChatInput, fileURL)
	if err != nil {
		return p.fail(item, nil, err)
	}

	ocrText, err := p.llm.ExtractText(ctx, fileURL)
	if err != nil {
		return p.fail(item, fields, err)
	}
	fields.OCR = ocrText

	fields.HashID = Fingerprint(fields)
	fields.UserID = item.UserID

	p.logger.Info("Inserting record",
		zap.String("file", item.FileName),
		zap.String("hash_id", fields.HashID),
	)
	if err := p.tables.InsertRecord(ctx, fields); err != nil {
		return p.fail(item, fields, err)
	}

	return models.Outcome{Status: models.OutcomeSuccess, Fields: *fields}
}

// fail converts a stage error into a fail outcome. Fields extracted before
// the failure are carried along; when the item failed before extraction the
// filename stands in for the vendor name.
func (p *Pipeline) fail(item *models.ReceiptItem, fields *models.ExtractedFields, err error) models.Outcome {
	p.logger.Error("Error processing receipt",
		zap.String("file", item.FileName),
		zap.Error(err),
	)

	outcome := models.Outcome{Status: models.OutcomeFail, Error: err.Error()}
	if fields != nil {
		outcome.Fields = *fields
	} else {
		outcome.Fields.VendorName = item.FileName
	}
	return outcome
}

func buildSummary(outcomes []models.Outcome) string {
	var success, fail []models.Outcome
	for _, outcome := range outcomes {
		if outcome.Status == models.OutcomeSuccess {
			success = append(success, outcome)
		} else {
			fail = append(fail, outcome)
		}
	}

	lines := []string{fmt.Sprintf("✅ %d receipts backed up successfully:", len(success))}
	for _, r := range success {
		lines = append(lines, fmt.Sprintf("- %s, %s%s on %s",
			r.Fields.VendorName, r.Fields.Currency, r.Fields.Amount, r.Fields.InvoiceDate))
	}

	if len(fail) > 0 {
		lines = append(lines, fmt.Sprintf("\n❌ %d receipts failed to back up:", len(fail)))
		for _, r := range fail {
			lines = append(lines, fmt.Sprintf("- %s, %s on %s – reason: %s",
				r.Fields.VendorName,
				orPlaceholder(r.Fields.Amount.String()),
				orPlaceholder(r.Fields.InvoiceDate),
				r.Error))
		}
	} else {
		lines = append(lines, "\nAll receipts were successfully backed up.")
	}

	return strings.Join(lines, "\n")
}

func orPlaceholder(value string) string {
	if value == "" {
		return "?"
	}
	return value
}
