package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/parlamentwatch/member-ingestion-service/internal/config"
	"github.com/parlamentwatch/member-ingestion-service/internal/models"
)

var memberIDPattern = regexp.MustCompile(`/person/(\d+)`)

// UpstreamError is returned when the parliament API answers with a non-2xx status
type UpstreamError struct {
	Endpoint   string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("parliament API %s returned status %d", e.Endpoint, e.StatusCode)
}

// rosterFilter is the fixed filter body for the current term's active members
type rosterFilter struct {
	Step    []string `json:"STEP"`
	Chamber []string `json:"NRBR"`
	Term    []string `json:"GP"`
	Role    []string `json:"R_WF"`
	Region  []string `json:"R_PBW"`
	Male    []string `json:"M"`
	Female  []string `json:"W"`
}

// Client talks to the parliament's public JSON API
type Client struct {
	config     config.UpstreamConfig
	httpClient *http.Client
	logger     *logrus.Logger
	backoff    func(attempt int) time.Duration
}

// NewClient creates a new upstream client
func NewClient(cfg config.UpstreamConfig, logger *logrus.Logger) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt+1) * time.Second
		},
	}
}

// BaseURL returns the configured host, used to absolutize profile paths
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.config.BaseURL, "/")
}

// RosterURL returns the filter endpoint for the configured chamber
func (c *Client) RosterURL() string {
	q := url.Values{}
	q.Set("jsMode", "EVAL")
	q.Set("FBEZ", c.config.FilterID)
	q.Set("listeId", "undefined")
	q.Set("showAll", "true")
	q.Set("export", "true")
	return c.BaseURL() + "/Filter/api/json/post?" + q.Encode()
}

// FetchRoster fetches the member roster with retry logic
func (c *Client) FetchRoster(ctx context.Context) (*models.RosterResponse, error) {
	retries := c.config.RetryCount
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		roster, err := c.fetchRosterOnce(ctx)
		if err == nil {
			return roster, nil
		}

		lastErr = err
		c.logger.WithError(err).WithField("attempt", attempt+1).Warn("roster fetch failed")
		if attempt < retries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", retries, lastErr)
}

// fetchRosterOnce performs a single roster POST
func (c *Client) fetchRosterOnce(ctx context.Context) (*models.RosterResponse, error) {
	body, err := json.Marshal(rosterFilter{
		Step:    []string{"1000"},
		Chamber: []string{c.config.Chamber},
		Term:    []string{"AKT"},
		Role:    []string{"FR"},
		Region:  []string{"WK"},
		Male:    []string{"M"},
		Female:  []string{"W"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal roster filter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.RosterURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var roster models.RosterResponse
	if err := c.do(req, "roster", &roster); err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{"count": roster.Count, "rows": len(roster.Rows)}).Info("fetched parliament roster")
	return &roster, nil
}

// FetchMemberDetail fetches one member's biography payload
func (c *Client) FetchMemberDetail(ctx context.Context, memberID string) (*models.DetailPayload, error) {
	endpoint := fmt.Sprintf("%s/person/%s?json=true", c.BaseURL(), url.PathEscape(memberID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var payload models.DetailPayload
	if err := c.do(req, "person/"+memberID, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch detail for member %s: %w", memberID, err)
	}
	return &payload, nil
}

func (c *Client) do(req *http.Request, endpoint string, out interface{}) error {
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// ExtractMemberID parses the numeric person id out of a profile path or URL
func ExtractMemberID(profileURL string) (string, bool) {
	match := memberIDPattern.FindStringSubmatch(profileURL)
	if match == nil {
		return "", false
	}
	return match[1], true
}
