// Document backend client over authenticated HTTPS
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/desertthunder/stepsync/internal/shared"
)

// DocumentService implements [Remote] against a REST document store.
//
// Documents are addressed as
// {base}/v1/projects/{project}/collections/{collection}/documents/{id}.
// PATCH merges partial documents server-side; the server assigns
// timestamps and, on create, document IDs.
type DocumentService struct {
	baseURL    string
	project    string
	httpClient *http.Client
	token      TokenProvider
}

// TokenProvider supplies the bearer token for each request. A nil
// provider means unauthenticated calls, which the backend rejects with
// 401 - the coordinator never gets that far for anonymous users.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

var _ Remote = (*DocumentService)(nil)

// NewDocumentService creates a client for the given backend project.
func NewDocumentService(baseURL, project string, client *http.Client, token TokenProvider) *DocumentService {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &DocumentService{
		baseURL:    baseURL,
		project:    project,
		httpClient: client,
		token:      token,
	}
}

func (d *DocumentService) documentURL(collection, id string) string {
	return fmt.Sprintf("%s/v1/projects/%s/collections/%s/documents/%s", d.baseURL, d.project, collection, id)
}

func (d *DocumentService) collectionURL(collection string) string {
	return fmt.Sprintf("%s/v1/projects/%s/collections/%s/documents", d.baseURL, d.project, collection)
}

// Read implements [Remote].
func (d *DocumentService) Read(ctx context.Context, collection, userID string) (json.RawMessage, error) {
	body, err := d.do(ctx, http.MethodGet, d.documentURL(collection, userID), nil)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Write implements [Remote]. PATCH is a server-side merge; repeating the
// same patch is a no-op, which the replay path depends on.
func (d *DocumentService) Write(ctx context.Context, collection, userID string, patch any) error {
	payload, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to encode patch: %w", err)
	}
	_, err = d.do(ctx, http.MethodPatch, d.documentURL(collection, userID), payload)
	return err
}

// List implements [Remote].
func (d *DocumentService) List(ctx context.Context, collection, userID string) ([]json.RawMessage, error) {
	url := fmt.Sprintf("%s?owner=%s", d.collectionURL(collection), userID)
	body, err := d.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var page struct {
		Documents []json.RawMessage `json:"documents"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode list response: %w", err)
	}
	return page.Documents, nil
}

// Create implements [Remote].
func (d *DocumentService) Create(ctx context.Context, collection string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}

	body, err := d.do(ctx, http.MethodPost, d.collectionURL(collection), data)
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("failed to decode create response: %w", err)
	}
	return created.ID, nil
}

// Delete implements [Remote]. A 404 is success: the document is gone
// either way, and replayed deletes must tolerate "already deleted".
func (d *DocumentService) Delete(ctx context.Context, collection, id string) error {
	_, err := d.do(ctx, http.MethodDelete, d.documentURL(collection, id), nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// ErrNotFound distinguishes 404; Delete treats it as success and Load
// paths treat it as an empty document, so it stays out of the shared
// permission/transient taxonomy.
var ErrNotFound = errors.New("document not found")

// IsNotFound reports whether err is a missing-document response.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// do performs one authenticated request and maps the response status to
// the shared error taxonomy.
func (d *DocumentService) do(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if d.token != nil {
		token, err := d.token.AccessToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrTransient, err)
	}

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, fmt.Errorf("%w: %s %s returned %d", err, method, url, resp.StatusCode)
	}
	return body, nil
}

// classifyTransport wraps connection-level failures as transient.
func classifyTransport(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", shared.ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", shared.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", shared.ErrTransient, err)
}

// classifyStatus maps an HTTP status to the shared error taxonomy.
//
// 401/403 are authoritative rejections; 408, 429 and 5xx are worth a
// retry; remaining 4xx are treated as permission-class because retrying
// an unprocessable request can never succeed.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return shared.ErrPermissionDenied
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return shared.ErrTransient
	case status >= 500:
		return shared.ErrTransient
	default:
		return shared.ErrPermissionDenied
	}
}
