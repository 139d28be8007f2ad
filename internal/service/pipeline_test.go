package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"receiptkeeper/internal/models"
	"receiptkeeper/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeBackends stands in for the storage, model and table collaborators of
// one batch run.
type fakeBackends struct {
	mu       sync.Mutex
	records  []models.ExtractedFields
	statuses []models.BatchStatus

	failUploads  map[string]string // file name suffix -> error body, upload returns 500
	extractions  map[string]string // file name suffix -> chat content for field extraction
	ocrText      string
	ocrStatus    int // 0 means 200
	ocrBody      string
	recordStatus int // 0 means 201
	recordBody   string
	uploadDelay  time.Duration

	inFlight    int
	maxInFlight int

	storage *httptest.Server
	model   *httptest.Server
	tables  *httptest.Server
}

func newFakeBackends(t *testing.T) *fakeBackends {
	t.Helper()
	b := &fakeBackends{
		failUploads: map[string]string{},
		extractions: map[string]string{},
		ocrText:     "RAW OCR TEXT",
	}

	b.storage = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.inFlight++
		if b.inFlight > b.maxInFlight {
			b.maxInFlight = b.inFlight
		}
		b.mu.Unlock()
		if b.uploadDelay > 0 {
			time.Sleep(b.uploadDelay)
		}
		defer func() {
			b.mu.Lock()
			b.inFlight--
			b.mu.Unlock()
		}()

		for suffix, errBody := range b.failUploads {
			if strings.HasSuffix(r.URL.Path, suffix) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(errBody))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(b.storage.Close)

	b.model = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		request := string(body)

		content := ""
		if strings.Contains(request, "OCR engine") {
			if b.ocrStatus != 0 {
				w.WriteHeader(b.ocrStatus)
				_, _ = w.Write([]byte(b.ocrBody))
				return
			}
			content = b.ocrText
		} else {
			for suffix, extraction := range b.extractions {
				if strings.Contains(request, suffix) {
					content = extraction
					break
				}
			}
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(b.model.Close)

	b.tables = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v1/receipts":
			if b.recordStatus != 0 {
				w.WriteHeader(b.recordStatus)
				_, _ = w.Write([]byte(b.recordBody))
				return
			}
			var fields models.ExtractedFields
			_ = json.NewDecoder(r.Body).Decode(&fields)
			b.mu.Lock()
			b.records = append(b.records, fields)
			b.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
		case "/rest/v1/upload_status":
			var status models.BatchStatus
			_ = json.NewDecoder(r.Body).Decode(&status)
			b.mu.Lock()
			b.statuses = append(b.statuses, status)
			b.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(b.tables.Close)

	return b
}

func (b *fakeBackends) newPipeline(maxConcurrency int) *Pipeline {
	httpClient := &http.Client{}
	log := zap.NewNop()
	storage := NewStorageClient(httpClient, &config.StorageConfig{
		BaseURL: b.storage.URL + "/storage/",
		Token:   "t",
	}, log)
	llm := NewLLMClient(httpClient, &config.ModelConfig{
		URL:    b.model.URL,
		APIKey: "k",
		Model:  "test/vision-model",
	}, log)
	tables := NewTableClient(httpClient, &config.TablesConfig{
		RecordsURL: b.tables.URL + "/rest/v1/receipts",
		StatusURL:  b.tables.URL + "/rest/v1/upload_status",
		APIKey:     "anon",
		Token:      "t",
	}, log)
	return NewPipeline(storage, llm, tables, &config.PipelineConfig{MaxConcurrency: maxConcurrency}, log)
}

func testItem(fileName, userID string) models.ReceiptItem {
	return models.ReceiptItem{
		FileName:    fileName,
		MimeType:    "image/jpeg",
		FileContent: []byte("jpeg bytes"),
		ChatInput:   "user " + userID + " batch uploaded receipts",
		SessionID:   "session-" + fileName,
		UserID:      userID,
	}
}

const (
	extractionA = `{"category":"meals","amount":12.00,"vendor_name":"Vendor A","invoice_date":"2024-01-01 10:00:00","currency":"$","invoice_number":"A-1"}`
	extractionC = `{"category":"transport","amount":5.50,"vendor_name":"Vendor C","invoice_date":"2024-02-02 09:30:00","currency":"€","address":"Madrid - Sevilla","invoice_number":"C-9"}`
)

func TestProcessBatchMixedOutcomes(t *testing.T) {
	backends := newFakeBackends(t)
	backends.extractions["_a.jpg"] = extractionA
	// Fenced output exercises the second accepted model response form.
	backends.extractions["_c.jpg"] = "```json\n" + extractionC + "\n```"
	backends.failUploads["_b.jpg"] = "bucket quota exceeded"

	pipeline := backends.newPipeline(0)
	summary, err := pipeline.ProcessBatch(context.Background(),
		[]models.ReceiptItem{testItem("a.jpg", "user-1"), testItem("b.jpg", "user-1"), testItem("c.jpg", "user-1")})
	require.NoError(t, err)

	want := strings.Join([]string{
		"✅ 2 receipts backed up successfully:",
		"- Vendor A, $12.00 on 2024-01-01 10:00:00",
		"- Vendor C, €5.50 on 2024-02-02 09:30:00",
		"",
		"❌ 1 receipts failed to back up:",
		"- b.jpg, ? on ? – reason: upload failed: bucket quota exceeded",
	}, "\n")
	assert.Equal(t, want, summary)

	// Only the two successful items reached the records table.
	require.Len(t, backends.records, 2)
	byVendor := map[string]models.ExtractedFields{}
	for _, rec := range backends.records {
		byVendor[rec.VendorName] = rec
	}
	recordA := byVendor["Vendor A"]
	assert.Equal(t, json.Number("12.00"), recordA.Amount)
	assert.Equal(t, "RAW OCR TEXT", recordA.OCR)
	assert.Equal(t, "user-1", recordA.UserID)
	assert.True(t, strings.HasSuffix(recordA.FileURL, "_a.jpg"))
	// md5("12.00|Vendor A|2024-01-01 10:00:00|A-1")
	assert.Equal(t, "f68755c29736641f857569258c7629ab", recordA.HashID)
	assert.Equal(t, "user user-1 batch uploaded receipts", recordA.OriginalInfo)

	// Exactly one status row, keyed to the first item's user, carrying the
	// summary verbatim.
	require.Len(t, backends.statuses, 1)
	assert.Equal(t, "user-1", backends.statuses[0].UserID)
	assert.Equal(t, summary, backends.statuses[0].UploadResult)
}

func TestProcessBatchAllSucceed(t *testing.T) {
	backends := newFakeBackends(t)
	backends.extractions["_a.jpg"] = extractionA

	pipeline := backends.newPipeline(0)
	summary, err := pipeline.ProcessBatch(context.Background(),
		[]models.ReceiptItem{testItem("a.jpg", "user-1")})
	require.NoError(t, err)

	want := strings.Join([]string{
		"✅ 1 receipts backed up successfully:",
		"- Vendor A, $12.00 on 2024-01-01 10:00:00",
		"",
		"All receipts were successfully backed up.",
	}, "\n")
	assert.Equal(t, want, summary)
}

func TestProcessBatchRecordInsertFailure(t *testing.T) {
	backends := newFakeBackends(t)
	backends.extractions["_a.jpg"] = extractionA
	backends.recordStatus = http.StatusInternalServerError
	backends.recordBody = "row level security violation"

	pipeline := backends.newPipeline(0)
	summary, err := pipeline.ProcessBatch(context.Background(),
		[]models.ReceiptItem{testItem("a.jpg", "user-1")})
	require.NoError(t, err)

	// Extraction and OCR succeeded, but "extracted and not durably recorded"
	// still counts as a failed item. The extracted fields survive into the
	// failure line.
	want := strings.Join([]string{
		"✅ 0 receipts backed up successfully:",
		"",
		"❌ 1 receipts failed to back up:",
		"- Vendor A, 12.00 on 2024-01-01 10:00:00 – reason: insert failed: row level security violation",
	}, "\n")
	assert.Equal(t, want, summary)

	// The status write still happens, keyed to the same user.
	require.Len(t, backends.statuses, 1)
	assert.Equal(t, summary, backends.statuses[0].UploadResult)
}

func TestProcessBatchOCRFailureCarriesExtractedFields(t *testing.T) {
	backends := newFakeBackends(t)
	backends.extractions["_a.jpg"] = extractionA
	backends.ocrStatus = http.StatusServiceUnavailable
	backends.ocrBody = "vision backend down"

	pipeline := backends.newPipeline(0)
	summary, err := pipeline.ProcessBatch(context.Background(),
		[]models.ReceiptItem{testItem("a.jpg", "user-1")})
	require.NoError(t, err)

	assert.Contains(t, summary, "- Vendor A, 12.00 on 2024-01-01 10:00:00 – reason: model request failed: vision backend down")
	assert.Empty(t, backends.records)
}

func TestProcessBatchEmpty(t *testing.T) {
	backends := newFakeBackends(t)
	pipeline := backends.newPipeline(0)

	_, err := pipeline.ProcessBatch(context.Background(), nil)
	require.Error(t, err)
	assert.Empty(t, backends.statuses)
}

func TestProcessBatchConcurrencyLimit(t *testing.T) {
	backends := newFakeBackends(t)
	backends.extractions["_a.jpg"] = extractionA
	backends.extractions["_b.jpg"] = extractionA
	backends.extractions["_c.jpg"] = extractionA
	backends.uploadDelay = 5 * time.Millisecond

	pipeline := backends.newPipeline(1)
	summary, err := pipeline.ProcessBatch(context.Background(),
		[]models.ReceiptItem{testItem("a.jpg", "u"), testItem("b.jpg", "u"), testItem("c.jpg", "u")})
	require.NoError(t, err)

	assert.Contains(t, summary, "✅ 3 receipts backed up successfully:")
	assert.Equal(t, 1, backends.maxInFlight)
}

func TestBuildSummaryPlaceholders(t *testing.T) {
	outcomes := []models.Outcome{
		{
			Status: models.OutcomeFail,
			Error:  "upload failed: boom",
			Fields: models.ExtractedFields{VendorName: "lost.jpg"},
		},
	}

	summary := buildSummary(outcomes)
	assert.Contains(t, summary, "✅ 0 receipts backed up successfully:")
	assert.Contains(t, summary, "- lost.jpg, ? on ? – reason: upload failed: boom")
}
