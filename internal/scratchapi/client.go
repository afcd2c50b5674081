// Package scratchapi fetches project metadata from the Scratch project API.
package scratchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/scratchlab/sb3-metrics-pipeline/internal/util"
)

// DefaultBaseURL is the production metadata service.
const DefaultBaseURL = "https://api.scratch.mit.edu"

// Record is the enrichment result for one project identifier. All fields are
// strings so they flow into CSV cells unchanged; an empty string is a null.
// Err is the error marker: non-empty when the service could not be reached
// within the retry budget or the identifier could not be derived.
type Record struct {
	ProjectID     string
	Title         string
	Author        string
	Created       string
	Modified      string
	RemixParentID string
	RemixRootID   string
	Err           string
}

// NullRecord returns a record with all metadata fields null and the given
// error marker.
func NullRecord(projectID, marker string) Record {
	return Record{ProjectID: projectID, Err: marker}
}

// Options configures a Client.
type Options struct {
	// BaseURL of the metadata service. Empty means DefaultBaseURL.
	BaseURL string
	// Timeout bounds one attempt.
	Timeout time.Duration
	// Retries is the number of extra attempts after the first.
	Retries int
	// RetryDelay is the fixed sleep between attempts.
	RetryDelay time.Duration
	// RateLimitRPS caps aggregate request rate across all callers.
	// <=0 disables the limiter.
	RateLimitRPS float64
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.BaseURL) == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 200 * time.Millisecond
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	return o
}

// Client fetches metadata records. It is stateless apart from the shared
// rate limiter and safe for concurrent use by any number of workers.
type Client struct {
	baseURL    *url.URL
	http       *http.Client
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	limiter    *rate.Limiter
}

// New constructs a Client.
func New(opts Options) (*Client, error) {
	opts = opts.withDefaults()
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse metadata base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("metadata base URL %q must be absolute", opts.BaseURL)
	}

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	return &Client{
		baseURL:    base,
		http:       opts.HTTPClient,
		timeout:    opts.Timeout,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		limiter:    limiter,
	}, nil
}

// projectResponse mirrors the subset of the service's JSON document we keep.
type projectResponse struct {
	Title  string `json:"title"`
	Author struct {
		Username string `json:"username"`
	} `json:"author"`
	History struct {
		Created  string `json:"created"`
		Modified string `json:"modified"`
	} `json:"history"`
	Remix struct {
		Parent *int64 `json:"parent"`
		Root   *int64 `json:"root"`
	} `json:"remix"`
}

// Fetch retrieves metadata for one numeric project identifier. It performs
// one request per attempt and retries on any transport error or non-200
// status with a fixed inter-attempt delay. Exhausting the budget yields a
// null record with a populated error marker — Fetch never returns an error,
// so enrichment can never turn a metric success into a pipeline failure.
func (c *Client) Fetch(ctx context.Context, projectID int64) Record {
	id := strconv.FormatInt(projectID, 10)

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(c.retryDelay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return NullRecord(id, util.Sanitize(ctx.Err().Error()))
			}
		}

		rec, err := c.fetchOnce(ctx, id)
		if err == nil {
			return rec
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	marker := "unknown error"
	if lastErr != nil {
		marker = util.Sanitize(lastErr.Error())
	}
	return NullRecord(id, marker)
}

func (c *Client) fetchOnce(ctx context.Context, id string) (Record, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Record{}, err
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := *c.baseURL
	u.Path = u.Path + "/projects/" + url.PathEscape(id)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Record{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Record{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Record{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Record{}, newHTTPError("getProject", resp, body)
	}

	var out projectResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Record{}, fmt.Errorf("parse project response: %w", err)
	}

	return Record{
		ProjectID:     id,
		Title:         out.Title,
		Author:        out.Author.Username,
		Created:       out.History.Created,
		Modified:      out.History.Modified,
		RemixParentID: formatOptionalID(out.Remix.Parent),
		RemixRootID:   formatOptionalID(out.Remix.Root),
	}, nil
}

func formatOptionalID(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
