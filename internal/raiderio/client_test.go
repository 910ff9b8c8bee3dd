package raiderio_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/config"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/raiderio"
)

const profileJSON = `{
	"name": "Thrall",
	"realm": "Blackhand",
	"region": "eu",
	"class": "Shaman",
	"active_spec_name": "Enhancement",
	"profile_url": "https://raider.io/characters/eu/blackhand/Thrall",
	"gear": {"item_level_equipped": 489.25},
	"mythic_plus_scores_by_season": [{"scores": {"all": 3105.4}}]
}`

func newClient(baseURL string) *raiderio.Client {
	return raiderio.NewClient(config.RaiderIOConfig{
		BaseURL:           baseURL,
		Timeout:           5 * time.Second,
		RequestsPerSecond: 100,
	})
}

func TestFetchProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/characters/profile" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("region") != "eu" || q.Get("realm") != "blackhand" || q.Get("name") != "Thrall" {
			t.Errorf("query = %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(profileJSON))
	}))
	defer srv.Close()

	p, err := newClient(srv.URL).FetchProfile(context.Background(), "eu", "blackhand", "Thrall")
	if err != nil {
		t.Fatalf("FetchProfile: %v", err)
	}
	if p.Name != "Thrall" || p.Class != "Shaman" || p.Spec != "Enhancement" {
		t.Errorf("profile = %+v", p)
	}
	if p.ItemLevel != 489.25 {
		t.Errorf("ItemLevel = %v, want 489.25", p.ItemLevel)
	}
	if p.Score != 3105.4 {
		t.Errorf("Score = %v, want 3105.4", p.Score)
	}
}

func TestFetchProfile_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"statusCode":400,"error":"Bad Request","message":"Could not find requested character"}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).FetchProfile(context.Background(), "eu", "blackhand", "Nobody")
	if !errors.Is(err, raiderio.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestFetchProfile_RetriesOnce(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(profileJSON))
	}))
	defer srv.Close()

	p, err := newClient(srv.URL).FetchProfile(context.Background(), "eu", "blackhand", "Thrall")
	if err != nil {
		t.Fatalf("FetchProfile: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want exactly one retry", calls)
	}
	if p.Name != "Thrall" {
		t.Errorf("profile = %+v", p)
	}
}

func TestFetchProfile_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).FetchProfile(context.Background(), "eu", "blackhand", "Thrall")
	if err == nil || errors.Is(err, raiderio.ErrNotFound) {
		t.Fatalf("error = %v, want generic API error", err)
	}
}
