package service

import "fmt"

// UploadError reports a non-200 response from the object storage backend.
// Body preserves the backend's response verbatim.
type UploadError struct {
	Status int
	Body   string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed: %s", e.Body)
}

// ExtractionError reports a failed model call, for both field extraction and
// OCR: a non-200 response, or a response whose content holds no JSON object
// where one is required.
type ExtractionError struct {
	Status int
	Body   string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("model request failed: %s", e.Body)
}

// PersistenceError reports a non-201 response from a table endpoint.
type PersistenceError struct {
	Status int
	Body   string
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("insert failed: %s", e.Body)
}
