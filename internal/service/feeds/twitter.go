package feeds

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"site-analytics/internal/domain"
	"site-analytics/pkg/logger"
)

const (
	// FeedTwitter is the social timeline feed
	FeedTwitter = "twitter"

	defaultTwitterBaseURL = "https://api.twitter.com"
	twitterPostLimit      = 5

	fallbackAuthorName     = "Alessandro Romano"
	fallbackAuthorUsername = "_aleromano"
)

// TwitterConfig configures the timeline source
type TwitterConfig struct {
	BearerToken string
	UserID      string
	BaseURL     string
}

// TwitterSource reads the newest posts of one account from the X API v2
type TwitterSource struct {
	cfg    TwitterConfig
	client *http.Client
	logger *logger.Logger
}

// NewTwitterSource creates the timeline source. Requests carry the bearer token
// through an oauth2 static token source.
func NewTwitterSource(cfg TwitterConfig, logger *logger.Logger) *TwitterSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTwitterBaseURL
	}

	client := &http.Client{Timeout: defaultHTTPTimeout}
	if cfg.BearerToken != "" {
		client = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.BearerToken,
			TokenType:   "Bearer",
		}))
		client.Timeout = defaultHTTPTimeout
	}

	return &TwitterSource{
		cfg:    cfg,
		client: client,
		logger: logger.Named("twitter"),
	}
}

// Name returns the feed name
func (s *TwitterSource) Name() string {
	return FeedTwitter
}

// FetchRaw fetches the timeline and returns it as a JSON array of SocialPost
func (s *TwitterSource) FetchRaw(ctx context.Context) ([]byte, error) {
	if s.cfg.BearerToken == "" || s.cfg.UserID == "" {
		return nil, fmt.Errorf("twitter bearer token or user id missing: %w", ErrNotConfigured)
	}

	url := fmt.Sprintf("%s/2/users/%s/tweets?"+
		"tweet.fields=created_at,public_metrics,author_id,attachments&"+
		"expansions=author_id,attachments.media_keys&"+
		"user.fields=name,username&"+
		"media.fields=type,url,preview_image_url,alt_text,width,height&"+
		"max_results=10", strings.TrimRight(s.cfg.BaseURL, "/"), s.cfg.UserID)

	var timeline twitterTimeline
	if err := getJSON(ctx, s.client, "Twitter", url, nil, &timeline); err != nil {
		s.logger.WithError(err).Warn("Failed to fetch Twitter timeline")
		return nil, err
	}

	posts := timeline.posts()
	s.logger.WithField("posts", len(posts)).Debug("Twitter timeline fetched")

	return json.Marshal(posts)
}

type twitterTimeline struct {
	Data []struct {
		ID            string    `json:"id"`
		Text          string    `json:"text"`
		CreatedAt     time.Time `json:"created_at"`
		AuthorID      string    `json:"author_id"`
		PublicMetrics struct {
			RetweetCount int64 `json:"retweet_count"`
			LikeCount    int64 `json:"like_count"`
			ReplyCount   int64 `json:"reply_count"`
		} `json:"public_metrics"`
		Attachments struct {
			MediaKeys []string `json:"media_keys"`
		} `json:"attachments"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Username string `json:"username"`
		} `json:"users"`
		Media []struct {
			MediaKey        string `json:"media_key"`
			Type            string `json:"type"`
			URL             string `json:"url"`
			PreviewImageURL string `json:"preview_image_url"`
			AltText         string `json:"alt_text"`
			Width           int    `json:"width"`
			Height          int    `json:"height"`
		} `json:"media"`
	} `json:"includes"`
}

// posts joins tweets with their expanded authors and media, newest first, at most five
func (t *twitterTimeline) posts() []domain.SocialPost {
	media := make(map[string]domain.PostMedia, len(t.Includes.Media))
	for _, m := range t.Includes.Media {
		media[m.MediaKey] = domain.PostMedia{
			Type:            m.Type,
			URL:             m.URL,
			PreviewImageURL: m.PreviewImageURL,
			AltText:         m.AltText,
			Width:           m.Width,
			Height:          m.Height,
		}
	}

	posts := make([]domain.SocialPost, 0, len(t.Data))
	for _, tweet := range t.Data {
		name, username := fallbackAuthorName, fallbackAuthorUsername
		for _, u := range t.Includes.Users {
			if u.ID == tweet.AuthorID {
				name, username = u.Name, u.Username
				break
			}
		}

		post := domain.SocialPost{
			ID:             tweet.ID,
			Text:           tweet.Text,
			URL:            fmt.Sprintf("https://twitter.com/%s/status/%s", username, tweet.ID),
			AuthorName:     name,
			AuthorUsername: username,
			CreatedAt:      tweet.CreatedAt,
			IsRetweet:      strings.HasPrefix(tweet.Text, "RT @"),
			Likes:          tweet.PublicMetrics.LikeCount,
			Reposts:        tweet.PublicMetrics.RetweetCount,
			Replies:        tweet.PublicMetrics.ReplyCount,
		}
		for _, key := range tweet.Attachments.MediaKeys {
			if m, ok := media[key]; ok {
				post.Media = append(post.Media, m)
			}
		}

		posts = append(posts, post)
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	if len(posts) > twitterPostLimit {
		posts = posts[:twitterPostLimit]
	}

	return posts
}

// parseTwitterTimeline normalizes a raw X API timeline body
func parseTwitterTimeline(body []byte) ([]byte, error) {
	var timeline twitterTimeline
	if err := json.Unmarshal(body, &timeline); err != nil {
		return nil, fmt.Errorf("failed to parse Twitter timeline: %w", err)
	}
	return json.Marshal(timeline.posts())
}
