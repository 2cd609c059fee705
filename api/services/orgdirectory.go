package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/CMSgov/dpc-portal/models"
	"github.com/cenkalti/backoff/v4"
)

// OrgDirectoryClient is the remote organization-management API.
//
// Create and Get calls return an *HTTPError when the directory answers with an unexpected
// status. Delete calls return false without an error when the directory refuses the
// deletion, and an error when it could not be reached.
type OrgDirectoryClient interface {
	CreateImplementer(ctx context.Context, name string) (*models.Implementer, error)
	CreateProviderOrg(ctx context.Context, implementerID, npi string) (*models.ProviderOrg, error)
	GetProviderOrgs(ctx context.Context, implementerID string) ([]models.ProviderOrg, error)

	CreateClientToken(ctx context.Context, orgID, label string) (*models.ClientToken, error)
	DeleteClientToken(ctx context.Context, orgID, tokenID string) (bool, error)
	GetClientTokens(ctx context.Context, orgID string) ([]models.ClientToken, error)

	CreatePublicKey(ctx context.Context, orgID, label, publicKey string) (*models.PublicKey, error)
	DeletePublicKey(ctx context.Context, orgID, keyID string) (bool, error)
	GetPublicKeys(ctx context.Context, orgID string) ([]models.PublicKey, error)
}

// DirectoryClient is a client for the DPC API implementer and organization endpoints.
type DirectoryClient struct {
	BaseURL    string
	Token      string
	Retries    int
	HTTPClient *http.Client

	newBackOff func() backoff.BackOff
}

// collection is the envelope of list responses.
type collection[T any] struct {
	Entities []T `json:"entities"`
	Count    int `json:"count"`
}

// NewDirectoryClient creates a client whose requests are bounded by timeout. Only GET
// requests are retried, up to retries times.
func NewDirectoryClient(baseURL, token string, timeout time.Duration, retries int) *DirectoryClient {
	return &DirectoryClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		Retries:    retries,
		HTTPClient: &http.Client{Timeout: timeout},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

// CreateImplementer registers a new implementer.
func (c *DirectoryClient) CreateImplementer(ctx context.Context, name string) (*models.Implementer, error) {
	var impl models.Implementer
	endpoint := fmt.Sprintf("%s/Implementer", c.BaseURL)
	if err := c.post(ctx, endpoint, map[string]string{"name": name}, &impl); err != nil {
		return nil, err
	}
	return &impl, nil
}

// CreateProviderOrg links the organization identified by npi to an implementer.
func (c *DirectoryClient) CreateProviderOrg(ctx context.Context, implementerID, npi string) (*models.ProviderOrg, error) {
	if err := checkID(implementerID); err != nil {
		return nil, err
	}

	var org models.ProviderOrg
	endpoint := fmt.Sprintf("%s/Implementer/%s/Org", c.BaseURL, url.PathEscape(implementerID))
	if err := c.post(ctx, endpoint, map[string]string{"npi": npi}, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

// GetProviderOrgs lists the organizations of an implementer.
func (c *DirectoryClient) GetProviderOrgs(ctx context.Context, implementerID string) ([]models.ProviderOrg, error) {
	if err := checkID(implementerID); err != nil {
		return nil, err
	}

	var orgs []models.ProviderOrg
	endpoint := fmt.Sprintf("%s/Implementer/%s/Org", c.BaseURL, url.PathEscape(implementerID))
	if err := c.get(ctx, endpoint, &orgs); err != nil {
		return nil, err
	}
	if orgs == nil {
		orgs = []models.ProviderOrg{}
	}
	return orgs, nil
}

// CreateClientToken issues a client token for an organization.
func (c *DirectoryClient) CreateClientToken(ctx context.Context, orgID, label string) (*models.ClientToken, error) {
	if err := checkID(orgID); err != nil {
		return nil, err
	}

	var token models.ClientToken
	endpoint := fmt.Sprintf("%s/Organization/%s/Token", c.BaseURL, url.PathEscape(orgID))
	if err := c.post(ctx, endpoint, map[string]string{"label": label}, &token); err != nil {
		return nil, err
	}
	if token.ID == "" || token.Token == "" {
		return nil, &HTTPError{Message: "organization directory returned a token without id or material", Status: http.StatusBadGateway}
	}
	return &token, nil
}

// DeleteClientToken revokes a client token.
func (c *DirectoryClient) DeleteClientToken(ctx context.Context, orgID, tokenID string) (bool, error) {
	if err := checkID(orgID, tokenID); err != nil {
		return false, err
	}
	endpoint := fmt.Sprintf("%s/Organization/%s/Token/%s", c.BaseURL, url.PathEscape(orgID), url.PathEscape(tokenID))
	return c.delete(ctx, endpoint)
}

// GetClientTokens lists the tokens of an organization without their material.
func (c *DirectoryClient) GetClientTokens(ctx context.Context, orgID string) ([]models.ClientToken, error) {
	if err := checkID(orgID); err != nil {
		return nil, err
	}

	var tokens collection[models.ClientToken]
	endpoint := fmt.Sprintf("%s/Organization/%s/Token", c.BaseURL, url.PathEscape(orgID))
	if err := c.get(ctx, endpoint, &tokens); err != nil {
		return nil, err
	}
	if tokens.Entities == nil {
		return []models.ClientToken{}, nil
	}
	return tokens.Entities, nil
}

// CreatePublicKey registers a PEM encoded public key for an organization.
func (c *DirectoryClient) CreatePublicKey(ctx context.Context, orgID, label, publicKey string) (*models.PublicKey, error) {
	if err := checkID(orgID); err != nil {
		return nil, err
	}

	var key models.PublicKey
	endpoint := fmt.Sprintf("%s/Organization/%s/Key", c.BaseURL, url.PathEscape(orgID))
	if err := c.post(ctx, endpoint, map[string]string{"label": label, "key": publicKey}, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

// DeletePublicKey removes a registered public key.
func (c *DirectoryClient) DeletePublicKey(ctx context.Context, orgID, keyID string) (bool, error) {
	if err := checkID(orgID, keyID); err != nil {
		return false, err
	}
	endpoint := fmt.Sprintf("%s/Organization/%s/Key/%s", c.BaseURL, url.PathEscape(orgID), url.PathEscape(keyID))
	return c.delete(ctx, endpoint)
}

// GetPublicKeys lists the public keys of an organization.
func (c *DirectoryClient) GetPublicKeys(ctx context.Context, orgID string) ([]models.PublicKey, error) {
	if err := checkID(orgID); err != nil {
		return nil, err
	}

	var keys collection[models.PublicKey]
	endpoint := fmt.Sprintf("%s/Organization/%s/Key", c.BaseURL, url.PathEscape(orgID))
	if err := c.get(ctx, endpoint, &keys); err != nil {
		return nil, err
	}
	if keys.Entities == nil {
		return []models.PublicKey{}, nil
	}
	return keys.Entities, nil
}

// checkID rejects identifiers that would change the meaning of the request path.
func checkID(ids ...string) error {
	for _, id := range ids {
		if id == "" || id == "." || id == ".." {
			return &HTTPError{Message: fmt.Sprintf("invalid identifier %q", id), Status: http.StatusBadRequest}
		}
	}
	return nil
}

func (c *DirectoryClient) post(ctx context.Context, endpoint string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	respBody, statusCode, err := c.makeRequest(ctx, http.MethodPost, endpoint, "application/json", body)
	if err != nil {
		return err
	}

	if statusCode != http.StatusOK && statusCode != http.StatusCreated {
		return statusError(http.MethodPost, statusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// get retries transport errors and 5xx responses with exponential backoff.
func (c *DirectoryClient) get(ctx context.Context, endpoint string, out interface{}) error {
	var respBody []byte

	operation := func() error {
		body, statusCode, err := c.makeRequest(ctx, http.MethodGet, endpoint, "application/json", nil)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if statusCode >= http.StatusInternalServerError {
			return statusError(http.MethodGet, statusCode, body)
		}
		if statusCode != http.StatusOK {
			return backoff.Permanent(statusError(http.MethodGet, statusCode, body))
		}
		respBody = body
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.backOff(), uint64(max(c.Retries, 0))), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return err
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *DirectoryClient) delete(ctx context.Context, endpoint string) (bool, error) {
	respBody, statusCode, err := c.makeRequest(ctx, http.MethodDelete, endpoint, "application/json", nil)
	if err != nil {
		return false, err
	}

	switch {
	case statusCode == http.StatusOK || statusCode == http.StatusNoContent:
		return true, nil
	case statusCode >= http.StatusInternalServerError:
		return false, statusError(http.MethodDelete, statusCode, respBody)
	default:
		return false, nil
	}
}

func (c *DirectoryClient) backOff() backoff.BackOff {
	if c.newBackOff == nil {
		return backoff.NewExponentialBackOff()
	}
	return c.newBackOff()
}

// maxErrorDetail is how many characters of a failed response are kept in the error.
const maxErrorDetail = 200

func statusError(method string, statusCode int, body []byte) *HTTPError {
	detail := strings.TrimSpace(string(body))
	if runes := []rune(detail); len(runes) > maxErrorDetail {
		detail = string(runes[:maxErrorDetail])
	}
	return &HTTPError{
		Message: fmt.Sprintf("organization directory %s failed, status: %d, response: %s", method, statusCode, detail),
		Status:  statusCode,
	}
}

// makeRequest performs a single request against the directory.
func (c *DirectoryClient) makeRequest(ctx context.Context, method, endpoint, contentType string, body []byte) ([]byte, int, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewBuffer(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		directoryRequestDuration.WithLabelValues(method, "error").Observe(time.Since(start).Seconds())
		return nil, 0, fmt.Errorf("request to organization directory failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	directoryRequestDuration.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return respBody, resp.StatusCode, nil
}

// IsNotFound reports whether err is a 404 from the directory.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound
}
