package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Sentinel errors the HTTP handler maps to response codes.
var (
	ErrTokenNotConfigured = errors.New("twitter API token not configured")
	ErrHandleRequired     = errors.New("twitter handle is required")
	ErrUserNotFound       = errors.New("twitter user not found")
)

// UpstreamError carries a non-2xx status from the Twitter API through to
// the caller unchanged.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// Insight is the aggregated result for one handle.
type Insight struct {
	TweetCount  int      `json:"tweet_count"`
	AvgLikes    int      `json:"avg_likes"`
	AvgRetweets int      `json:"avg_retweets"`
	TopHashtags []string `json:"top_hashtags"`
}

// Config holds the upstream API settings.
type Config struct {
	// APIBase defaults to the public Twitter API.
	APIBase     string
	BearerToken string
	HTTPClient  *http.Client
}

// Client aggregates recent-post metrics for a handle. Stateless; every
// call hits the upstream API.
type Client struct {
	apiBase    string
	token      string
	httpClient *http.Client
}

const defaultAPIBase = "https://api.twitter.com"

// recent posts fetched per aggregation
const postSampleSize = 10

const topHashtagCount = 5

var hashtagPattern = regexp.MustCompile(`#[A-Za-z0-9_]+`)

func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.APIBase, "/")
	if base == "" {
		base = defaultAPIBase
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		apiBase:    base,
		token:      strings.TrimSpace(cfg.BearerToken),
		httpClient: httpClient,
	}
}

// Aggregate looks up the handle, pulls its recent posts and reduces them to
// averages and top hashtags. The token check runs before the handle check.
func (c *Client) Aggregate(ctx context.Context, handle string) (Insight, error) {
	if c.token == "" {
		return Insight{}, ErrTokenNotConfigured
	}
	handle = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
	if handle == "" {
		return Insight{}, ErrHandleRequired
	}
	userID, err := c.lookupUser(ctx, handle)
	if err != nil {
		return Insight{}, err
	}
	posts, err := c.recentPosts(ctx, userID)
	if err != nil {
		return Insight{}, err
	}
	return reduce(posts), nil
}

type tweet struct {
	Text          string `json:"text"`
	PublicMetrics struct {
		LikeCount    int `json:"like_count"`
		RetweetCount int `json:"retweet_count"`
	} `json:"public_metrics"`
}

func (c *Client) lookupUser(ctx context.Context, handle string) (string, error) {
	endpoint := fmt.Sprintf("%s/2/users/by/username/%s", c.apiBase, url.PathEscape(handle))
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, endpoint, "failed to fetch twitter user", &resp); err != nil {
		return "", err
	}
	if resp.Data.ID == "" {
		return "", ErrUserNotFound
	}
	return resp.Data.ID, nil
}

func (c *Client) recentPosts(ctx context.Context, userID string) ([]tweet, error) {
	endpoint := fmt.Sprintf("%s/2/users/%s/tweets?max_results=%d&tweet.fields=public_metrics",
		c.apiBase, url.PathEscape(userID), postSampleSize)
	var resp struct {
		Data []tweet `json:"data"`
	}
	if err := c.getJSON(ctx, endpoint, "failed to fetch tweets", &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, failMsg string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{Status: resp.StatusCode, Message: failMsg}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func reduce(posts []tweet) Insight {
	insight := Insight{TopHashtags: []string{}}
	if len(posts) == 0 {
		return insight
	}
	var likes, retweets int
	counts := map[string]int{}
	var firstSeen []string
	for _, post := range posts {
		likes += post.PublicMetrics.LikeCount
		retweets += post.PublicMetrics.RetweetCount
		for _, tag := range hashtagPattern.FindAllString(post.Text, -1) {
			tag = strings.ToLower(tag)
			if counts[tag] == 0 {
				firstSeen = append(firstSeen, tag)
			}
			counts[tag]++
		}
	}
	insight.TweetCount = len(posts)
	insight.AvgLikes = roundAverage(likes, len(posts))
	insight.AvgRetweets = roundAverage(retweets, len(posts))
	// Descending count, ties kept in first-seen order.
	sort.SliceStable(firstSeen, func(i, j int) bool {
		return counts[firstSeen[i]] > counts[firstSeen[j]]
	})
	if len(firstSeen) > topHashtagCount {
		firstSeen = firstSeen[:topHashtagCount]
	}
	insight.TopHashtags = firstSeen
	return insight
}

// roundAverage rounds half away from zero, matching Math.round for the
// non-negative sums the metrics produce.
func roundAverage(sum, count int) int {
	return int(math.Round(float64(sum) / float64(count)))
}
