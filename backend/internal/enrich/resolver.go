package enrich

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

	"tweet-graph/backend/internal/bookmark"
	apperrors "tweet-graph/backend/pkg/errors"
	"tweet-graph/backend/pkg/logger"
	"go.uber.org/zap"
)

const (
	// maxBatchSize is the X API v2 tweet-lookup limit per request
	maxBatchSize = 100
	// rateWindow is the sliding rate-limit window
	rateWindow = 15 * time.Minute
)

// Resolver fetches full tweet records from the X API v2 for truncated
// captures. Requests are throttled with a sliding 15-minute window.
type Resolver struct {
	baseURL     string
	bearerToken string
	budget      int
	httpClient  *http.Client
	logger      *zap.Logger

	// request log for the sliding window
	timestamps []time.Time

	// injectable clock, overridden in tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// NewResolver creates a resolver. budget is the request allowance per
// 15-minute window (300 for app-only auth).
func NewResolver(baseURL, bearerToken string, budget int) *Resolver {
	return &Resolver{
		baseURL:     strings.TrimRight(baseURL, "/"),
		bearerToken: bearerToken,
		budget:      budget,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.Get(),
		now:    time.Now,
		sleep: func(ctx context.Context, d time.Duration) {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
			case <-t.C:
			}
		},
	}
}

// FetchBatch returns full records for every id the source recognizes, keyed
// by id. Ids the source does not know are simply absent from the result.
func (r *Resolver) FetchBatch(ctx context.Context, ids []string) (map[string]bookmark.FullRecord, error) {
	if len(ids) == 0 {
		return map[string]bookmark.FullRecord{}, nil
	}
	if len(ids) > maxBatchSize {
		ids = ids[:maxBatchSize]
	}

	if err := r.waitForBudget(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("tweet.fields", "created_at,author_id,entities,referenced_tweets")
	q.Set("expansions", "author_id,entities.mentions.username")
	q.Set("user.fields", "id,username,name")

	reqURL := r.baseURL + "/tweets?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperrors.NewEnrichSource("failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.bearerToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewEnrichSource("request failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to parsing
	case http.StatusTooManyRequests:
		return nil, apperrors.NewRateLimited(resetTimeFromHeader(resp, r.now()))
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, apperrors.NewAuthFailed(resp.StatusCode)
	case http.StatusNotFound:
		// none of the requested ids exist anymore
		return map[string]bookmark.FullRecord{}, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperrors.NewEnrichSource(
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewEnrichSource("failed to decode response", err)
	}

	usernames := make(map[string]string, len(parsed.Includes.Users))
	for _, u := range parsed.Includes.Users {
		usernames[u.ID] = u.Username
	}

	records := make(map[string]bookmark.FullRecord, len(parsed.Data))
	for _, t := range parsed.Data {
		rec := bookmark.FullRecord{
			ID:             t.ID,
			Text:           t.Text,
			AuthorUsername: usernames[t.AuthorID],
		}
		for _, h := range t.Entities.Hashtags {
			rec.Hashtags = append(rec.Hashtags, h.Tag)
		}
		for _, m := range t.Entities.Mentions {
			rec.Mentions = append(rec.Mentions, m.Username)
		}
		for _, u := range t.Entities.URLs {
			if u.ExpandedURL != "" {
				rec.URLs = append(rec.URLs, u.ExpandedURL)
			} else if u.URL != "" {
				rec.URLs = append(rec.URLs, u.URL)
			}
		}
		for _, ref := range t.ReferencedTweets {
			switch ref.Type {
			case "replied_to":
				rec.ReplyTo = ref.ID
			case "quoted":
				rec.QuoteOf = ref.ID
			}
		}
		records[t.ID] = rec
	}

	r.logger.Debug("Enrichment batch resolved",
		zap.Int("requested", len(ids)),
		zap.Int("resolved", len(records)),
	)
	return records, nil
}

// waitForBudget enforces the sliding window: timestamps older than the
// window are evicted, and when the remaining count has reached the budget
// the call blocks until the oldest entry ages out. Cooperative backpressure,
// not a circuit breaker.
func (r *Resolver) waitForBudget(ctx context.Context) error {
	now := r.now()
	cutoff := now.Add(-rateWindow)

	kept := r.timestamps[:0]
	for _, ts := range r.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	r.timestamps = kept

	if len(r.timestamps) >= r.budget {
		oldest := r.timestamps[0]
		wait := oldest.Add(rateWindow).Sub(now)
		if wait > 0 {
			r.logger.Warn("Enrichment budget exhausted, waiting",
				zap.Duration("wait", wait), zap.Int("budget", r.budget))
			r.sleep(ctx, wait)
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		r.timestamps = r.timestamps[1:]
	}

	r.timestamps = append(r.timestamps, r.now())
	return nil
}

func resetTimeFromHeader(resp *http.Response, now time.Time) time.Time {
	if v := resp.Header.Get("x-rate-limit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(epoch, 0)
		}
	}
	return now.Add(rateWindow)
}

// X API v2 response shapes, reduced to the fields this pipeline reads.

type apiResponse struct {
	Data     []apiTweet `json:"data"`
	Includes struct {
		Users []apiUser `json:"users"`
	} `json:"includes"`
}

type apiTweet struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	AuthorID string `json:"author_id"`
	Entities struct {
		Hashtags []struct {
			Tag string `json:"tag"`
		} `json:"hashtags"`
		Mentions []struct {
			Username string `json:"username"`
		} `json:"mentions"`
		URLs []struct {
			URL         string `json:"url"`
			ExpandedURL string `json:"expanded_url"`
		} `json:"urls"`
	} `json:"entities"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
}

type apiUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
