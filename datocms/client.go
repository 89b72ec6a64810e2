// Package datocms implements cms.Target on top of DatoCMS: lookups go
// through the GraphQL Content Delivery API (preview endpoint, so drafts are
// visible) and writes through the REST Content Management API.
package datocms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGraphQLURL = "https://graphql.datocms.com/preview"
	defaultContentURL = "https://site-api.datocms.com"
)

// ErrNoBuildTrigger is returned by Deploy when no build trigger is configured.
var ErrNoBuildTrigger = errors.New("datocms: no build trigger configured")

// APIError is a non-2xx answer of either API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("datocms: api returned %d: %s", e.StatusCode, e.Body)
}

// GraphQLError carries the "errors" array of a GraphQL answer.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "datocms: graphql: " + strings.Join(e.Messages, "; ")
}

// Options configures a Client. Token must be a full-access API token.
type Options struct {
	Token          string
	PostItemTypeID string
	BuildTriggerID string
	GraphQLURL     string
	ContentURL     string
	HTTPClient     *http.Client
}

// Client talks to one DatoCMS project.
type Client struct {
	token          string
	postItemTypeID string
	buildTriggerID string
	graphqlURL     string
	contentURL     string
	httpClient     *http.Client
}

func New(opts Options) *Client {
	graphqlURL := strings.TrimSpace(opts.GraphQLURL)
	if graphqlURL == "" {
		graphqlURL = defaultGraphQLURL
	}
	contentURL := strings.TrimRight(strings.TrimSpace(opts.ContentURL), "/")
	if contentURL == "" {
		contentURL = defaultContentURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		token:          opts.Token,
		postItemTypeID: opts.PostItemTypeID,
		buildTriggerID: opts.BuildTriggerID,
		graphqlURL:     graphqlURL,
		contentURL:     contentURL,
		httpClient:     httpClient,
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// query runs a GraphQL query and decodes its "data" into out.
func (c *Client) query(ctx context.Context, q string, vars map[string]any, out any) error {
	payload, err := json.Marshal(graphqlRequest{Query: q, Variables: vars})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var res graphqlResponse
	if err := c.do(req, &res); err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		gqlErr := &GraphQLError{}
		for _, e := range res.Errors {
			gqlErr.Messages = append(gqlErr.Messages, e.Message)
		}
		return gqlErr
	}
	if len(res.Data) == 0 || string(res.Data) == "null" {
		return errors.New("datocms: graphql: empty data")
	}
	return json.Unmarshal(res.Data, out)
}

// jsonAPI sends a request to the Content Management API. body and out may be
// nil.
func (c *Client) jsonAPI(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.contentURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Version", "3")
	if body != nil {
		req.Header.Set("Content-Type", "application/vnd.api+json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("datocms: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("datocms: decode %s: %w", req.URL.Path, err)
	}
	return nil
}
