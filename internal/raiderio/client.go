// Package raiderio is a small client for the public Raider.IO character
// API, used to import and refresh characters.
package raiderio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/config"
)

// ErrNotFound is returned when Raider.IO does not know the character.
var ErrNotFound = errors.New("character not found on raider.io")

// Profile is the subset of the Raider.IO character profile the bot keeps.
type Profile struct {
	Name       string
	Realm      string
	Region     string
	Class      string
	Spec       string
	ItemLevel  float64
	Score      float64
	ProfileURL string
}

// Client is a rate-limited Raider.IO API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient returns a Client configured from cfg.
func NewClient(cfg config.RaiderIOConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// FetchProfile fetches a character profile with gear and current-season
// Mythic+ score.
func (c *Client) FetchProfile(ctx context.Context, region, realm, name string) (*Profile, error) {
	q := url.Values{}
	q.Set("region", region)
	q.Set("realm", realm)
	q.Set("name", name)
	q.Set("fields", "gear,mythic_plus_scores_by_season:current")

	var raw profileResponse
	if err := c.get(ctx, "/api/v1/characters/profile?"+q.Encode(), &raw); err != nil {
		return nil, err
	}

	p := &Profile{
		Name:       raw.Name,
		Realm:      raw.Realm,
		Region:     raw.Region,
		Class:      raw.Class,
		Spec:       raw.ActiveSpecName,
		ItemLevel:  raw.Gear.ItemLevelEquipped,
		ProfileURL: raw.ProfileURL,
	}
	if len(raw.MythicPlusScoresBySeason) > 0 {
		p.Score = raw.MythicPlusScoresBySeason[0].Scores.All
	}
	return p, nil
}

type profileResponse struct {
	Name           string `json:"name"`
	Realm          string `json:"realm"`
	Region         string `json:"region"`
	Class          string `json:"class"`
	ActiveSpecName string `json:"active_spec_name"`
	ProfileURL     string `json:"profile_url"`
	Gear           struct {
		ItemLevelEquipped float64 `json:"item_level_equipped"`
	} `json:"gear"`
	MythicPlusScoresBySeason []struct {
		Scores struct {
			All float64 `json:"all"`
		} `json:"scores"`
	} `json:"mythic_plus_scores_by_season"`
}

// get performs a rate-limited GET and decodes the JSON response. A 429 is
// retried once after the server's Retry-After.
func (c *Client) get(ctx context.Context, path string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.do(ctx, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		delay := retryAfter(resp)
		resp.Body.Close()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if resp, err = c.do(ctx, path); err != nil {
			return fmt.Errorf("retry failed: %w", err)
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		return ErrNotFound
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("raider.io error: status %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}

func retryAfter(resp *http.Response) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if d, err := time.ParseDuration(s + "s"); err == nil {
			return d
		}
	}
	return time.Second
}
