package service

import (
	"encoding/json"
	"testing"

	"receiptkeeper/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintKnownValue(t *testing.T) {
	fields := &models.ExtractedFields{
		Amount:        json.Number("42.50"),
		VendorName:    "Cafe X",
		InvoiceDate:   "2024-03-01 12:00:00",
		InvoiceNumber: "INV-1",
	}

	// md5("42.50|Cafe X|2024-03-01 12:00:00|INV-1")
	assert.Equal(t, "da80fef708de51b4fe8fbeb001416240", Fingerprint(fields))
}

func TestFingerprintDeterministic(t *testing.T) {
	fields := &models.ExtractedFields{
		Amount:        json.Number("9.99"),
		VendorName:    "Taxi Co",
		InvoiceDate:   "2024-06-15 08:00:00",
		InvoiceNumber: "T-77",
	}

	first := Fingerprint(fields)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Fingerprint(fields))
	}
	assert.Len(t, first, 32)
}

func TestFingerprintIgnoresNonKeyFields(t *testing.T) {
	a := &models.ExtractedFields{
		Amount:        json.Number("10"),
		VendorName:    "Shop",
		InvoiceDate:   "2024-01-01 00:00:00",
		InvoiceNumber: "1",
		Category:      "meals",
		OCR:           "some text",
	}
	b := &models.ExtractedFields{
		Amount:        json.Number("10"),
		VendorName:    "Shop",
		InvoiceDate:   "2024-01-01 00:00:00",
		InvoiceNumber: "1",
		Category:      "transport",
		Address:       "A - B",
	}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintMissingFieldsAreEmpty(t *testing.T) {
	// md5("|||")
	assert.Equal(t, "2edf2958166561c5c08cd228e53bbcdc", Fingerprint(&models.ExtractedFields{}))
}
