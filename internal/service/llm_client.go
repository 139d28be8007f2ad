package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"receiptkeeper/internal/models"
	"receiptkeeper/pkg/config"

	"go.uber.org/zap"
)

// extractionSystemPrompt drives structured field extraction. The schema lists
// file_url and original_info even though the caller's values always replace
// them; they are there to guide the model's reasoning.
const extractionSystemPrompt = `You are an intelligent business travel reimbursement assistant. You are responsible for saving invoices or receipts and other travel-related information.

Based on the user's input and uploaded attachments, extract the following information and return it in **JSON format only**, with no extra explanation:

{
  "category": "...",
  "amount": ...,
  "vendor_name": "...",
  "invoice_date": "...",
  "original_info": "...",
  "currency": ...,
  "address": "...",
  "file_url": "...",
  "invoice_number": "..."
}

Notes:

- ` + "`invoice_date`" + `: The invoice or receipt issue date. It must be returned in the format timestamp(` + "`YYYY-MM-DD HH:mm:ss`" + `).
                  Do **not** return vague expressions such as "today", "mañana", or "next Friday".
                  Convert such expressions into a specific date using the system time.
- ` + "`amount`" + `: Please extract the final paid amount from this invoice. Prioritize values explicitly labeled as:"Total Paid", "Total Charged", "Cobrado", "Amount Charged", or similar;If multiple totals exist, prefer the one that includes tax and/or is marked as paid;Avoid using subtotal or pre-tax fields as the final amount.
- ` + "`address`" + `: The invoice or receipt address. For transportation invoices, return in the format ` + "`\"Origin - Destination\"`"

// ocrSystemPrompt asks for plain text only, with line structure preserved.
const ocrSystemPrompt = `You are a professional OCR engine. Please extract the text content from the image provided by the user and return it in plain text format.

Do not include any explanation, comments, or additional information.

Output requirements:
- Return only the text content recognized from the image
- Preserve the original paragraph and line break structure (if any)
- Do NOT include phrases like "The extracted text is:"
- If the image is empty or contains no text, return an empty string without explanation`

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// LLMClient calls the OpenRouter-compatible chat completions API with a
// vision-capable model. The model never sees raw file bytes, only the
// durable storage URL of an already-uploaded image.
type LLMClient struct {
	httpClient *http.Client
	config     *config.ModelConfig
	logger     *zap.Logger
}

func NewLLMClient(httpClient *http.Client, cfg *config.ModelConfig, logger *zap.Logger) *LLMClient {
	return &LLMClient{
		httpClient: httpClient,
		config:     cfg,
		logger:     logger,
	}
}

// ExtractFields asks the model for the structured receipt record. The
// returned fields always carry the caller-supplied file URL and instruction
// text; whatever the model put in file_url/original_info is discarded.
func (c *LLMClient) ExtractFields(ctx context.Context, userInput, fileURL string) (*models.ExtractedFields, error) {
	content, err := c.complete(ctx, extractionSystemPrompt, []contentPart{
		{Type: "text", Text: userInput},
		{Type: "image_url", ImageURL: &imageURL{URL: fileURL}},
	})
	if err != nil {
		return nil, err
	}

	fields, err := parseModelJSON(content)
	if err != nil {
		return nil, err
	}

	fields.FileURL = fileURL
	fields.OriginalInfo = userInput
	return fields, nil
}

// ExtractText runs the OCR-only prompt and returns the model's response
// content verbatim.
func (c *LLMClient) ExtractText(ctx context.Context, fileURL string) (string, error) {
	return c.complete(ctx, ocrSystemPrompt, []contentPart{
		{Type: "image_url", ImageURL: &imageURL{URL: fileURL}},
	})
}

func (c *LLMClient) complete(ctx context.Context, systemPrompt string, userContent []contentPart) (string, error) {
	payload := chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.Error("Model request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("model", c.config.Model),
		)
		return "", &ExtractionError{Status: resp.StatusCode, Body: string(bodyBytes)}
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", err
	}
	if len(chatResp.Choices) == 0 {
		return "", &ExtractionError{Status: resp.StatusCode, Body: "no choices in model response"}
	}

	return chatResp.Choices[0].Message.Content, nil
}

// parseModelJSON locates the JSON object in a model reply. Accepted forms are
// a bare object and an object inside a fenced code block labeled json.
func parseModelJSON(content string) (*models.ExtractedFields, error) {
	jsonStr := strings.TrimSpace(content)
	if !strings.HasPrefix(jsonStr, "{") {
		_, after, found := strings.Cut(content, "```json")
		if !found {
			return nil, &ExtractionError{Body: "no JSON object in model output: " + content}
		}
		jsonStr, _, _ = strings.Cut(after, "```")
		jsonStr = strings.TrimSpace(jsonStr)
	}

	var fields models.ExtractedFields
	if err := json.Unmarshal([]byte(jsonStr), &fields); err != nil {
		return nil, &ExtractionError{Body: "no JSON object in model output: " + content}
	}
	return &fields, nil
}
