package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"treasury-lghub/internal/core/domain"
)

// HTTPRenderer converts letter HTML to PDF bytes through the render service.
type HTTPRenderer struct {
	renderURL string
	client    *http.Client
}

// NewHTTPRenderer creates a new HTTP renderer
func NewHTTPRenderer(renderURL string) *HTTPRenderer {
	return &HTTPRenderer{
		renderURL: renderURL,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Render posts the substituted HTML and returns the PDF bytes.
func (r *HTTPRenderer) Render(ctx context.Context, html string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{"html": html})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.renderURL+"/v1/render", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: %s", domain.ErrRenderFailed, string(body))
	}

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}
	return pdf, nil
}
