package models

import "encoding/json"

// ReceiptItem is one uploaded receipt as it enters the pipeline. Items are
// built by the webhook handler (PDFs already rasterized to JPEG) and are
// read-only from that point on.
type ReceiptItem struct {
	FileName    string
	MimeType    string
	FileContent []byte
	ChatInput   string
	SessionID   string
	UserID      string
}

// ExtractedFields is the structured record pulled out of a receipt by the
// model, enriched by the pipeline with the upload URL, OCR text, dedup hash
// and user id before it is inserted into the records table.
//
// Amount is kept as json.Number so the value round-trips with the exact
// lexical form the model produced ("42.50" stays "42.50"); the hash input
// and the summary depend on that.
type ExtractedFields struct {
	Category      string      `json:"category,omitempty"`
	Amount        json.Number `json:"amount,omitempty"`
	VendorName    string      `json:"vendor_name,omitempty"`
	InvoiceDate   string      `json:"invoice_date,omitempty"`
	OriginalInfo  string      `json:"original_info,omitempty"`
	Currency      string      `json:"currency,omitempty"`
	Address       string      `json:"address,omitempty"`
	FileURL       string      `json:"file_url,omitempty"`
	InvoiceNumber string      `json:"invoice_number,omitempty"`
	OCR           string      `json:"ocr,omitempty"`
	HashID        string      `json:"hash_id,omitempty"`
	UserID        string      `json:"user_id,omitempty"`
}

type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFail    OutcomeStatus = "fail"
)

// Outcome is the per-item result carried into the batch summary. A fail
// outcome holds whatever fields were available when the item's pipeline
// stopped, plus the error message.
type Outcome struct {
	Status OutcomeStatus
	Error  string
	Fields ExtractedFields
}

// BatchStatus is the single best-effort row written to the status table
// after a batch completes.
type BatchStatus struct {
	UserID       string `json:"user_id"`
	UploadResult string `json:"upload_result"`
}
