package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Client talks to the commerce platform's REST API. Every list endpoint is
// paged the same way (searchCriteria with page size / current page plus filter
// triples), so one FetchPage covers all resource kinds.
type Client struct {
	host       string
	token      string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform API error (%d): %s", e.Status, e.Body)
}

// Filter is one searchCriteria triple. ConditionType follows the platform's
// vocabulary: eq, gteq, lteq, like, in.
type Filter struct {
	Field         string
	Value         string
	ConditionType string
}

type PageResult struct {
	Items      []json.RawMessage
	TotalCount int
}

func NewClient(httpClient *http.Client, host, token string) *Client {
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		token:      token,
		httpClient: httpClient,
	}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

type listEnvelope struct {
	Items      []json.RawMessage `json:"items"`
	TotalCount int               `json:"total_count"`
}

// FetchPage retrieves one page of a resource list. Each filter goes into its
// own filter group, which the platform combines with AND.
func (c *Client) FetchPage(ctx context.Context, resource string, pageSize, page int, filters []Filter) (PageResult, error) {
	if resource == "" {
		return PageResult{}, fmt.Errorf("resource is required")
	}
	if pageSize <= 0 {
		return PageResult{}, fmt.Errorf("page size must be positive")
	}
	if page <= 0 {
		return PageResult{}, fmt.Errorf("page must be positive")
	}
	query := url.Values{}
	query.Set("searchCriteria[pageSize]", strconv.Itoa(pageSize))
	query.Set("searchCriteria[currentPage]", strconv.Itoa(page))
	for i, f := range filters {
		prefix := fmt.Sprintf("searchCriteria[filter_groups][%d][filters][0]", i)
		query.Set(prefix+"[field]", f.Field)
		query.Set(prefix+"[value]", f.Value)
		cond := f.ConditionType
		if cond == "" {
			cond = "eq"
		}
		query.Set(prefix+"[condition_type]", cond)
	}
	body, err := c.doRequest(ctx, "/rest/V1/"+strings.TrimLeft(resource, "/"), query)
	if err != nil {
		return PageResult{}, err
	}
	var envelope listEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return PageResult{}, fmt.Errorf("decode %s page: %w", resource, err)
	}
	return PageResult{Items: envelope.Items, TotalCount: envelope.TotalCount}, nil
}

// FetchSingle is the point lookup used by single-order / single-SKU imports.
func (c *Client) FetchSingle(ctx context.Context, resource, externalID string) (json.RawMessage, error) {
	if resource == "" {
		return nil, fmt.Errorf("resource is required")
	}
	if externalID == "" {
		return nil, fmt.Errorf("external id is required")
	}
	path := "/rest/V1/" + strings.TrimLeft(resource, "/") + "/" + url.PathEscape(externalID)
	body, err := c.doRequest(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}
