package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fitlife/plan-service/internal/config"
	"fitlife/plan-service/internal/domain"
)

// httpProvider calls a plan-generation service over JSON/HTTP.
type httpProvider struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPProvider creates a PlanProvider hitting the configured endpoint.
func NewHTTPProvider(cfg config.ProviderConfig) PlanProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpProvider{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

func (p *httpProvider) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1/plans/%s", p.baseURL, req.PlanType)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: provider returned status %d", ErrGenerationFailed, resp.StatusCode)
	}

	var result GenerationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrGenerationFailed, err)
	}

	// A payload of the wrong shape is a provider failure, not a plan.
	switch {
	case req.PlanType == domain.PlanTypeWorkout && result.Workout == nil:
		return nil, fmt.Errorf("%w: missing workout payload", ErrGenerationFailed)
	case req.PlanType == domain.PlanTypeDiet && result.Diet == nil:
		return nil, fmt.Errorf("%w: missing diet payload", ErrGenerationFailed)
	}

	return &result, nil
}
