package skillpasssdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal SkillPass HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Skill represents the API skill model (partial).
type Skill struct {
	SkillID          uint64 `json:"skill_id"`
	Owner            string `json:"owner"`
	Category         string `json:"category"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	TotalStaked      uint64 `json:"total_staked"`
	EndorsementCount uint64 `json:"endorsement_count"`
	Verified         bool   `json:"verified"`
}

// Reputation represents a user's reputation state.
type Reputation struct {
	User            string `json:"user"`
	ReputationScore uint64 `json:"reputation_score"`
	TotalEarned     uint64 `json:"total_earned"`
	TotalSlashed    uint64 `json:"total_slashed"`
}

// Investment represents a position in a skill's pool.
type Investment struct {
	Investor      string `json:"investor"`
	SkillID       uint64 `json:"skill_id"`
	Amount        uint64 `json:"amount"`
	LastClaimTime int64  `json:"last_claim_time"`
	TotalClaimed  uint64 `json:"total_claimed"`
}

// YieldClaim is the result of claiming accrued yield.
type YieldClaim struct {
	SkillID       uint64 `json:"skill_id"`
	YieldAmount   uint64 `json:"yield_amount"`
	MonthsClaimed int64  `json:"months_claimed"`
	TotalClaimed  uint64 `json:"total_claimed"`
}

// Endorsement represents a staked endorsement.
type Endorsement struct {
	Endorser     string `json:"endorser"`
	SkillID      uint64 `json:"skill_id"`
	StakedAmount uint64 `json:"staked_amount"`
	Active       bool   `json:"active"`
	Evidence     string `json:"evidence"`
}

// Event represents a log entry.
type Event struct {
	ID      int64          `json:"id"`
	TS      string         `json:"ts"`
	Type    string         `json:"type"`
	SkillID uint64         `json:"skill_id"`
	ActorID string         `json:"actor_id"`
	Payload map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// CreateSkill registers a skill owned by the authenticated actor.
func (c *Client) CreateSkill(ctx context.Context, category, name, description string) (Skill, error) {
	body := map[string]any{
		"category":    category,
		"name":        name,
		"description": description,
	}
	var resp Skill
	err := c.do(ctx, http.MethodPost, "v0/skills", body, &resp)
	return resp, err
}

// GetReputation returns a user's reputation state.
func (c *Client) GetReputation(ctx context.Context, user string) (Reputation, error) {
	var resp Reputation
	endpoint := fmt.Sprintf("v0/reputation/%s", url.PathEscape(user))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Invest backs a skill's pool with the given amount.
func (c *Client) Invest(ctx context.Context, skillID, amount uint64) (Investment, error) {
	body := map[string]any{"amount": amount}
	var resp Investment
	endpoint := fmt.Sprintf("v0/skills/%d/invest", skillID)
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// ClaimYield claims the caller's accrued yield from a skill's pool.
func (c *Client) ClaimYield(ctx context.Context, skillID uint64) (YieldClaim, error) {
	var resp YieldClaim
	endpoint := fmt.Sprintf("v0/skills/%d/yield/claim", skillID)
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// Endorse stakes tokens behind a skill with evidence.
func (c *Client) Endorse(ctx context.Context, skillID, stakeAmount uint64, evidence string) (Endorsement, error) {
	body := map[string]any{
		"stake_amount": stakeAmount,
		"evidence":     evidence,
	}
	var resp Endorsement
	endpoint := fmt.Sprintf("v0/skills/%d/endorse", skillID)
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Leaderboard returns skills ranked by total endorsement stake.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]Skill, error) {
	var resp []Skill
	endpoint := "v0/leaderboard"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
