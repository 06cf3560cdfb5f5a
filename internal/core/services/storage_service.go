package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// HTTPObjectStore persists documents through the object-storage gateway and
// returns the URI the gateway assigns.
type HTTPObjectStore struct {
	storageURL string
	token      string
	client     *http.Client
}

// NewHTTPObjectStore creates a new object store client
func NewHTTPObjectStore(storageURL, token string) *HTTPObjectStore {
	return &HTTPObjectStore{
		storageURL: storageURL,
		token:      token,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Store uploads the bytes under a collision-free variant of logicalPath and
// returns the stored URI.
func (s *HTTPObjectStore) Store(ctx context.Context, data []byte, logicalPath string) (string, error) {
	path := fmt.Sprintf("%s-%s", uuid.New().String()[:8], logicalPath)

	req, err := http.NewRequestWithContext(ctx, "PUT",
		fmt.Sprintf("%s/v1/objects/%s", s.storageURL, url.PathEscape(path)),
		bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("storage error: %s", string(body))
	}

	var result struct {
		URI string `json:"uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.URI, nil
}

// Delete removes a stored object by its URI.
func (s *HTTPObjectStore) Delete(ctx context.Context, uri string) error {
	req, err := http.NewRequestWithContext(ctx, "DELETE",
		fmt.Sprintf("%s/v1/objects?uri=%s", s.storageURL, url.QueryEscape(uri)), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("storage delete error: %s", string(body))
	}
	return nil
}
