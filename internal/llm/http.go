package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/hyperjump/exasperation/internal/resilience"
	"github.com/hyperjump/exasperation/pkg/utils"
)

// postJSON sends body to url and decodes a 2xx response into out. Failures come back as *ProviderError.
func postJSON(ctx context.Context, client *http.Client, limiter *rate.Limiter, provider, url, apiKey string, body, out any) error {
	if err := resilience.Wait(ctx, limiter); err != nil {
		return err
	}
	data, err := json.Marshal(body)
	if err != nil {
		return newProviderError(provider, "marshal_error", 0, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return newProviderError(provider, "request_error", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		pe := newProviderError(provider, "http_error", 0, err)
		pe.Retryable = true
		return pe
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return newProviderError(provider, "read_error", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return newProviderError(provider, errorCode(payload), resp.StatusCode,
			errors.New(utils.Truncate(errorMessage(payload), 200)))
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return newProviderError(provider, "unmarshal_error", resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// errorBody covers both {"error":{"type","message"}} and {"error":"..."} payloads.
type errorBody struct {
	Error json.RawMessage `json:"error"`
}

func errorCode(payload []byte) string {
	var eb errorBody
	if json.Unmarshal(payload, &eb) == nil && len(eb.Error) > 0 {
		var typed struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(eb.Error, &typed) == nil && typed.Type != "" {
			return typed.Type
		}
	}
	return "api_error"
}

func errorMessage(payload []byte) string {
	var eb errorBody
	if json.Unmarshal(payload, &eb) == nil && len(eb.Error) > 0 {
		var typed struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(eb.Error, &typed) == nil && typed.Message != "" {
			return typed.Message
		}
		var s string
		if json.Unmarshal(eb.Error, &s) == nil && s != "" {
			return s
		}
	}
	return string(payload)
}
