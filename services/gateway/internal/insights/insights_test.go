package insights

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

type fixturePost struct {
	Text     string
	Likes    int
	Retweets int
}

func fixtureUpstream(t *testing.T, posts []fixturePost) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/2/users/by/username/"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]string{"id": "42"},
			})
		case strings.HasPrefix(r.URL.Path, "/2/users/42/tweets"):
			data := make([]map[string]any, 0, len(posts))
			for _, p := range posts {
				data = append(data, map[string]any{
					"text": p.Text,
					"public_metrics": map[string]int{
						"like_count":    p.Likes,
						"retweet_count": p.Retweets,
					},
				})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAggregateAveragesAndHashtags(t *testing.T) {
	srv := fixtureUpstream(t, []fixturePost{
		{Text: "shipping #Go #go", Likes: 10, Retweets: 2},
		{Text: "rewrote it in #rust", Likes: 20, Retweets: 4},
	})
	c := NewClient(Config{APIBase: srv.URL, BearerToken: "token"})

	insight, err := c.Aggregate(context.Background(), "someone")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if insight.TweetCount != 2 {
		t.Fatalf("tweet count = %d, want 2", insight.TweetCount)
	}
	if insight.AvgLikes != 15 {
		t.Fatalf("avg likes = %d, want 15", insight.AvgLikes)
	}
	if insight.AvgRetweets != 3 {
		t.Fatalf("avg retweets = %d, want 3", insight.AvgRetweets)
	}
	// #go appears twice (case folded), #rust once.
	if want := []string{"#go", "#rust"}; !reflect.DeepEqual(insight.TopHashtags, want) {
		t.Fatalf("top hashtags = %v, want %v", insight.TopHashtags, want)
	}
}

func TestAggregateZeroPosts(t *testing.T) {
	srv := fixtureUpstream(t, nil)
	c := NewClient(Config{APIBase: srv.URL, BearerToken: "token"})

	insight, err := c.Aggregate(context.Background(), "quietaccount")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if insight.TweetCount != 0 || insight.AvgLikes != 0 || insight.AvgRetweets != 0 {
		t.Fatalf("zero posts should yield zero result, got %+v", insight)
	}
	if insight.TopHashtags == nil || len(insight.TopHashtags) != 0 {
		t.Fatalf("top hashtags = %#v, want empty slice", insight.TopHashtags)
	}
}

func TestAggregateTokenCheckBeforeHandleCheck(t *testing.T) {
	c := NewClient(Config{APIBase: "http://unused.invalid"})
	if _, err := c.Aggregate(context.Background(), ""); !errors.Is(err, ErrTokenNotConfigured) {
		t.Fatalf("expected ErrTokenNotConfigured, got %v", err)
	}

	c = NewClient(Config{APIBase: "http://unused.invalid", BearerToken: "token"})
	if _, err := c.Aggregate(context.Background(), "   "); !errors.Is(err, ErrHandleRequired) {
		t.Fatalf("expected ErrHandleRequired, got %v", err)
	}
}

func TestAggregateUserNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()
	c := NewClient(Config{APIBase: srv.URL, BearerToken: "token"})

	if _, err := c.Aggregate(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAggregatePropagatesUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	c := NewClient(Config{APIBase: srv.URL, BearerToken: "token"})

	_, err := c.Aggregate(context.Background(), "someone")
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Status != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", upstream.Status)
	}
	if upstream.Message != "failed to fetch twitter user" {
		t.Fatalf("message = %q", upstream.Message)
	}
}

func TestTopHashtagsCapAndTieOrder(t *testing.T) {
	posts := []fixturePost{
		{Text: "#a #b #c #d #e #f"},
		{Text: "#d again"},
	}
	srv := fixtureUpstream(t, posts)
	c := NewClient(Config{APIBase: srv.URL, BearerToken: "token"})

	insight, err := c.Aggregate(context.Background(), "tagger")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	// #d leads on count; the single-use tags keep first-seen order.
	want := []string{"#d", "#a", "#b", "#c", "#e"}
	if !reflect.DeepEqual(insight.TopHashtags, want) {
		t.Fatalf("top hashtags = %v, want %v", insight.TopHashtags, want)
	}
}
