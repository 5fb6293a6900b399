// Package translate orchestrates best-effort translation through an
// external gateway. A gateway failure never blocks message flow: the
// caller always gets text it can deliver, translated or not.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"lingo/internal/observability/metrics"
)

type Result struct {
	Text         string
	IsTranslated bool
}

type Orchestrator struct {
	endpoint string
	http     *http.Client
}

func New(endpoint string, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Orchestrator{
		endpoint: strings.TrimSpace(endpoint),
		http:     &http.Client{Timeout: timeout},
	}
}

type gatewayRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
}

type gatewayResponse struct {
	TranslatedText string `json:"translatedText"`
}

// Translate returns the text rendered in targetLanguage, or the
// untouched original when the languages match or the gateway is
// unavailable. It is idempotent: the same triple always yields an
// equivalent result, so callers may cache freely.
func (o *Orchestrator) Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) Result {
	original := Result{Text: text, IsTranslated: false}

	srcCode := LanguageCode(sourceLanguage)
	dstCode := LanguageCode(targetLanguage)
	if srcCode == "" || dstCode == "" || srcCode == dstCode {
		return original
	}

	out, err := o.call(ctx, gatewayRequest{
		Text:           text,
		SourceLanguage: srcCode,
		TargetLanguage: dstCode,
	})
	if err != nil {
		metrics.TranslationsTotal.WithLabelValues("failure").Inc()
		slog.Warn("translation degraded to original text",
			"source", sourceLanguage, "target", targetLanguage, "error", err)
		return original
	}
	if strings.TrimSpace(out) == "" {
		metrics.TranslationsTotal.WithLabelValues("failure").Inc()
		return original
	}
	metrics.TranslationsTotal.WithLabelValues("success").Inc()
	return Result{Text: out, IsTranslated: true}
}

func (o *Orchestrator) call(ctx context.Context, payload gatewayRequest) (string, error) {
	if o.endpoint == "" {
		return "", fmt.Errorf("gateway endpoint not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gateway returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	var out gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.TranslatedText, nil
}
