package handlers

import (
	"io"
	"mime"
	"path/filepath"
	"regexp"
	"strings"

	"receiptkeeper/internal/models"
	"receiptkeeper/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// userIDPattern pulls the user id out of instructions shaped like
// "user 12345 batch uploaded 3 receipts".
var userIDPattern = regexp.MustCompile(`user (\S+?) batch uploaded`)

type WebhookHandler struct {
	pipeline   *service.Pipeline
	rasterizer *service.Rasterizer
	logger     *zap.Logger
}

func NewWebhookHandler(pipeline *service.Pipeline, rasterizer *service.Rasterizer, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		pipeline:   pipeline,
		rasterizer: rasterizer,
		logger:     logger,
	}
}

// ReceiveReceipts godoc
// @Summary Back up a batch of receipts
// @Description Accepts receipt files plus a free-text instruction, runs the extraction pipeline and returns a summary
// @Tags webhook
// @Accept multipart/form-data
// @Produce json
// @Param chatInput formData string true "Free-text instruction, e.g. 'user 12345 batch uploaded 3 receipts'"
// @Param files formData file true "Receipt files (images or PDFs)"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /webhook/chat [post]
func (h *WebhookHandler) ReceiveReceipts(c *fiber.Ctx) error {
	chatInput := c.FormValue("chatInput")
	if chatInput == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "chatInput is required",
		})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid multipart form",
		})
	}
	uploads := form.File["files"]
	if len(uploads) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one file is required",
		})
	}

	userID := "unknown"
	if match := userIDPattern.FindStringSubmatch(chatInput); match != nil {
		userID = match[1]
	}

	h.logger.Info("Received receipt batch",
		zap.String("user_id", userID),
		zap.Int("files", len(uploads)),
	)

	items := make([]models.ReceiptItem, 0, len(uploads))
	for _, upload := range uploads {
		src, err := upload.Open()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Failed to open uploaded file",
			})
		}

		content, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Failed to read uploaded file",
			})
		}

		fileName := upload.Filename
		mimeType := upload.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = mime.TypeByExtension(filepath.Ext(fileName))
		}
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		if strings.HasSuffix(strings.ToLower(fileName), ".pdf") {
			h.logger.Info("Converting PDF to image", zap.String("file", fileName))
			content, err = h.rasterizer.FirstPageJPEG(content)
			if err != nil {
				h.logger.Error("PDF conversion failed", zap.String("file", fileName), zap.Error(err))
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Failed to convert PDF: " + fileName,
				})
			}
			fileName = strings.TrimSuffix(fileName, filepath.Ext(fileName)) + ".jpg"
			mimeType = "image/jpeg"
		}

		items = append(items, models.ReceiptItem{
			FileName:    fileName,
			MimeType:    mimeType,
			FileContent: content,
			ChatInput:   chatInput,
			SessionID:   uuid.New().String(),
			UserID:      userID,
		})
	}

	summary, err := h.pipeline.ProcessBatch(c.Context(), items)
	if err != nil {
		h.logger.Error("Failed to process batch", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process receipts",
		})
	}

	return c.JSON(fiber.Map{"summary": summary})
}
