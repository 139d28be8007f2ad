package service

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"receiptkeeper/internal/models"
)

// Fingerprint derives the dedup key for a receipt:
// md5 over amount, vendor name, invoice date and invoice number joined with
// "|". Two extractions with identical values for those four fields collide
// on purpose; this is a dedup key, not a content hash of the file. Missing
// fields participate as empty strings.
func Fingerprint(fields *models.ExtractedFields) string {
	input := strings.Join([]string{
		fields.Amount.String(),
		fields.VendorName,
		fields.InvoiceDate,
		fields.InvoiceNumber,
	}, "|")
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])
}
