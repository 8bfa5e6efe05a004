package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clauselens/clauselens/constants"
	"github.com/clauselens/clauselens/internal/llm"
)

var (
	_ llm.FieldExtractor    = (*Client)(nil)
	_ llm.DocTypeClassifier = (*Client)(nil)
	_ llm.RiskReviewer      = (*Client)(nil)
	_ llm.Answerer          = (*Client)(nil)
)

// ExtractFields implements llm.FieldExtractor against generateContent.
// If PrepConfidence is low and FilePath points at an image, the page image is
// attached inline and the (unhelpful) OCR text is left out of the prompt.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.ContractFields, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.DocText),
		"has_file_path", req.FilePath != "",
		"prep_confidence", req.PrepConfidence,
		"allowed_doc_types", len(req.AllowedDocTypes),
	)

	schema := llm.BuildContractJSONSchema(req.AllowedDocTypes)
	attach, b64, mt := llm.ShouldAttachFile(req)
	sys := llm.BuildSystemPrompt(req)
	user := llm.BuildUserPrompt(req, attach)

	parts := []part{{Text: user}}
	if attach {
		c.log.Info("llm.extract.attach_image",
			"req_id", rid, "mime_type", mt, "prep_confidence", req.PrepConfidence)
		parts = append(parts, part{InlineData: &inlineData{MIMEType: mt, Data: b64}})
	}

	text, err := c.generate(ctx, sys, parts, schema)
	if err != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ContractFields{}, nil, err
	}

	rawContent := []byte(stripCodeFence(text))

	// Normalize synonyms and obvious noise before strict validation.
	if cleaned, _, nErr := llm.NormalizeAndSanitizeJSON(rawContent, c.log); nErr == nil {
		rawContent = cleaned
	}

	// Validate strictly first.
	if err := llm.ValidateJSONAgainstSchema(schema, rawContent); err != nil {
		if c.cfg.StrictOptional {
			c.log.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", err, "content", string(rawContent),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.ContractFields{}, rawContent, fmt.Errorf("schema validation failed: %w", err)
		}
		// Try a lenient sanitize: drop/normalize optional offenders and re-validate.
		cleaned, dropped, sErr := llm.SanitizeOptionalFields(rawContent)
		if sErr != nil {
			c.log.Error("llm.extract.sanitize_failed",
				"req_id", rid, "error", sErr,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.ContractFields{}, rawContent, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := llm.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.log.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", vErr, "content", string(rawContent),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.ContractFields{}, rawContent, fmt.Errorf("schema validation failed: %w", vErr)
		}
		c.log.Warn("llm.extract.lenient_sanitize_applied",
			"req_id", rid, "dropped", dropped,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		rawContent = cleaned
	}

	var out llm.ContractFields
	if err := json.Unmarshal(rawContent, &out); err != nil {
		c.log.Error("llm.extract.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ContractFields{}, rawContent, fmt.Errorf("unmarshal fields: %w", err)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"doc_type", out.DocType,
		"title", out.Title,
		"parties", len(out.Parties),
		"effective_date", out.EffectiveDate,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, rawContent, nil
}

// ClassifyDocType implements llm.DocTypeClassifier.
func (c *Client) ClassifyDocType(ctx context.Context, text, filename string, allowed []string) (string, float32, error) {
	sys, user := llm.BuildClassifyPrompts(text, filename, allowed)
	resp, err := c.generate(ctx, sys, []part{{Text: user}}, llm.BuildDocTypeJSONSchema(allowed))
	if err != nil {
		return "", 0, err
	}

	var out struct {
		DocType    string  `json:"doc_type"`
		Confidence float32 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(resp)), &out); err != nil {
		return "", 0, fmt.Errorf("decode doc_type response: %w", err)
	}
	if out.DocType == "" {
		return "", 0, fmt.Errorf("empty doc_type in response")
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	} else if out.Confidence > 1 {
		out.Confidence = 1
	}
	return out.DocType, out.Confidence, nil
}

// ReviewRisks implements llm.RiskReviewer.
func (c *Client) ReviewRisks(ctx context.Context, req llm.RiskReviewRequest) ([]llm.ModelFlag, error) {
	rid := uuid.New().String()
	start := time.Now()
	cats := constants.RiskCategoriesAsStrings()

	c.log.Info("llm.risk_review.start",
		"req_id", rid, "model", c.cfg.Model, "doc_type", req.DocType, "text_len", len(req.DocText))

	sys := llm.BuildRiskSystemPrompt(cats)
	user := llm.BuildRiskUserPrompt(req)
	resp, err := c.generate(ctx, sys, []part{{Text: user}}, llm.BuildRiskFlagsJSONSchema(cats))
	if err != nil {
		c.log.Error("llm.risk_review.http_error",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	var out struct {
		Flags []llm.ModelFlag `json:"flags"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(resp)), &out); err != nil {
		c.log.Error("llm.risk_review.decode_error",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("decode risk flags: %w", err)
	}

	flags := out.Flags[:0:0]
	for _, f := range out.Flags {
		if constants.Severity(f.Severity).Rank() == 0 {
			f.Severity = string(constants.SeverityMedium)
		}
		if f.Score < 0 {
			f.Score = 0
		} else if f.Score > 100 {
			f.Score = 100
		}
		if strings.TrimSpace(f.Title) == "" || strings.TrimSpace(f.Detail) == "" {
			continue
		}
		flags = append(flags, f)
	}

	c.log.Info("llm.risk_review.ok",
		"req_id", rid, "flags", len(flags), "elapsed_ms", time.Since(start).Milliseconds())
	return flags, nil
}

// AnswerQuestion implements llm.Answerer. Plain-text output, no schema.
func (c *Client) AnswerQuestion(ctx context.Context, req llm.AnswerRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.answer.start",
		"req_id", rid, "model", c.cfg.Model,
		"passages", len(req.Passages), "history", len(req.History))

	sys := llm.BuildAnswerSystemPrompt()
	user := llm.BuildAnswerUserPrompt(req)
	resp, err := c.generate(ctx, sys, []part{{Text: user}}, nil)
	if err != nil {
		c.log.Error("llm.answer.http_error",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}

	c.log.Info("llm.answer.ok",
		"req_id", rid, "answer_len", len(resp), "elapsed_ms", time.Since(start).Milliseconds())
	return strings.TrimSpace(resp), nil
}

// generate is the shared generateContent call. When schema is non-nil the model is
// constrained to JSON structured output. Retries 429/5xx with exponential backoff;
// a 400 that names the response schema gets one retry without it.
func (c *Client) generate(ctx context.Context, system string, userParts []part, schema map[string]any) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("gemini: API key not configured")
	}

	// Rate limiting: keep a minimum gap between requests.
	c.mu.Lock()
	if elapsed := time.Since(c.lastRequest); elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	genCfg := &generationConfig{
		Temperature:     c.cfg.Temperature,
		MaxOutputTokens: c.cfg.MaxOutputTokens,
	}
	if schema != nil {
		genCfg.ResponseMIMEType = "application/json"
		genCfg.ResponseSchema = schema
	}
	body := generateRequest{
		Contents:         []content{{Role: "user", Parts: userParts}},
		GenerationConfig: genCfg,
	}
	if system != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)
	// Key goes in a header, not the query string, so request logging stays clean.
	headers := map[string]string{"x-goog-api-key": c.cfg.APIKey}

	var lastErr error
	for i := 0; i <= c.cfg.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(1<<uint(i-1)) * time.Second):
			}
		}

		raw, status, err := llm.SendJSON(ctx, c.httpClient, url, body, headers, c.log)
		if err != nil {
			switch {
			case status == http.StatusTooManyRequests || status >= 500 || status == 0:
				lastErr = err
				continue
			case status == http.StatusBadRequest && genCfg.ResponseSchema != nil &&
				(bytes.Contains(raw, []byte("response_schema")) || bytes.Contains(raw, []byte("responseSchema"))):
				// Some models reject structured output; retry once without it.
				genCfg.ResponseSchema = nil
				genCfg.ResponseMIMEType = "application/json"
				lastErr = fmt.Errorf("response schema rejected: %w", err)
				continue
			default:
				return "", fmt.Errorf("gemini status %d: %s", status, truncateBody(raw))
			}
		}

		var out generateResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", fmt.Errorf("decode gemini response: %w", err)
		}
		if out.Error != nil {
			return "", fmt.Errorf("gemini error %d (%s): %s", out.Error.Code, out.Error.Status, out.Error.Message)
		}
		if len(out.Candidates) == 0 {
			return "", fmt.Errorf("no candidates in gemini response")
		}

		var sb strings.Builder
		for _, p := range out.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
		text := strings.TrimSpace(sb.String())
		if text == "" {
			return "", fmt.Errorf("empty candidate (finish_reason=%s)", out.Candidates[0].FinishReason)
		}
		return text, nil
	}
	return "", fmt.Errorf("gemini: retries exhausted: %w", lastErr)
}

// stripCodeFence removes a ```json ... ``` wrapper some responses still carry.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func truncateBody(b []byte) string {
	const max = 512
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "…"
}
