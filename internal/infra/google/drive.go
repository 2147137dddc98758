package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/petermyo/DecentralizeFileShare/internal/app/provider"
)

const errorBodyLimit = 512

// Drive reads and deletes files through the Drive v3 REST API.
type Drive struct {
	baseURL string
	client  *http.Client
}

// NewDrive returns a Drive client rooted at baseURL (e.g. https://www.googleapis.com/drive/v3).
func NewDrive(baseURL string, client *http.Client) *Drive {
	if client == nil {
		client = NewHTTPClient()
	}
	return &Drive{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Metadata fetches the file's id, name and MIME type.
func (d *Drive) Metadata(ctx context.Context, accessToken, fileID string) (*provider.ObjectMetadata, error) {
	resp, err := d.get(ctx, accessToken, fileID, url.Values{"fields": {"id,name,mimeType"}})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var meta struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		MimeType string `json:"mimeType"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("%w: decode metadata for %s: %v", provider.ErrUpstream, fileID, err)
	}
	return &provider.ObjectMetadata{ID: meta.ID, Name: meta.Name, MimeType: meta.MimeType}, nil
}

// Open starts a media download. The caller owns the returned body.
func (d *Drive) Open(ctx context.Context, accessToken, fileID string) (*provider.ObjectStream, error) {
	resp, err := d.get(ctx, accessToken, fileID, url.Values{"alt": {"media"}})
	if err != nil {
		return nil, err
	}
	return &provider.ObjectStream{Body: resp.Body, ContentLength: resp.ContentLength}, nil
}

// Delete removes the file permanently. 404 and 410 count as already deleted.
func (d *Drive) Delete(ctx context.Context, accessToken, fileID string) error {
	resp, err := d.do(ctx, http.MethodDelete, accessToken, fileID, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound, http.StatusGone:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, errorBodyLimit))
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return statusError(resp.StatusCode, fileID, snippet)
}

func (d *Drive) get(ctx context.Context, accessToken, fileID string, query url.Values) (*http.Response, error) {
	resp, err := d.do(ctx, http.MethodGet, accessToken, fileID, query)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return nil, statusError(resp.StatusCode, fileID, snippet)
}

func (d *Drive) do(ctx context.Context, method, accessToken, fileID string, query url.Values) (*http.Response, error) {
	endpoint := fmt.Sprintf("%s/files/%s", d.baseURL, url.PathEscape(fileID))
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", provider.ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrUpstream, err)
	}
	return resp, nil
}

func statusError(status int, fileID string, body []byte) error {
	msg := strings.TrimSpace(string(body))
	switch status {
	case http.StatusNotFound, http.StatusForbidden, http.StatusGone:
		return fmt.Errorf("%w: drive returned %d for %s: %s", provider.ErrObjectUnavailable, status, fileID, msg)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: drive returned 401 for %s: %s", provider.ErrGrantRevoked, fileID, msg)
	default:
		return fmt.Errorf("%w: drive returned %d for %s: %s", provider.ErrUpstream, status, fileID, msg)
	}
}
