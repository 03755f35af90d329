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
	// FeedGitHub is the repository activity feed
	FeedGitHub = "github"

	defaultGitHubBaseURL = "https://api.github.com"
	githubCommitPage     = 9
	shortSHALength       = 7
)

// GitHubConfig configures the commits source. Token is optional; without it
// requests are anonymous and subject to the lower rate limit.
type GitHubConfig struct {
	Token   string
	Owner   string
	Repo    string
	BaseURL string
}

// GitHubSource lists the owner's recent commits on one repository
type GitHubSource struct {
	cfg    GitHubConfig
	client *http.Client
	logger *logger.Logger
}

// NewGitHubSource creates the commits source
func NewGitHubSource(cfg GitHubConfig, logger *logger.Logger) *GitHubSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGitHubBaseURL
	}

	client := &http.Client{Timeout: defaultHTTPTimeout}
	if cfg.Token != "" {
		client = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.Token,
			TokenType:   "Bearer",
		}))
		client.Timeout = defaultHTTPTimeout
	}

	return &GitHubSource{
		cfg:    cfg,
		client: client,
		logger: logger.Named("github"),
	}
}

// Name returns the feed name
func (s *GitHubSource) Name() string {
	return FeedGitHub
}

// FetchRaw fetches commits and returns them as a JSON array of Commit
func (s *GitHubSource) FetchRaw(ctx context.Context) ([]byte, error) {
	if s.cfg.Owner == "" || s.cfg.Repo == "" {
		return nil, fmt.Errorf("github owner or repo missing: %w", ErrNotConfigured)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/commits?per_page=%d&author=%s",
		strings.TrimRight(s.cfg.BaseURL, "/"), s.cfg.Owner, s.cfg.Repo, githubCommitPage, s.cfg.Owner)
	headers := map[string]string{
		"Accept":     "application/vnd.github.v3+json",
		"User-Agent": "site-analytics",
	}

	var raw []githubCommit
	if err := getJSON(ctx, s.client, "GitHub", url, headers, &raw); err != nil {
		s.logger.WithError(err).Warn("Failed to fetch GitHub commits")
		return nil, err
	}

	commits := normalizeCommits(raw, s.cfg.Owner+"/"+s.cfg.Repo)
	s.logger.WithField("commits", len(commits)).Debug("GitHub commits fetched")

	return json.Marshal(commits)
}

type githubCommit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

// normalizeCommits drops merge commits, keeps the first message line and a
// short SHA, newest first
func normalizeCommits(raw []githubCommit, repo string) []domain.Commit {
	commits := make([]domain.Commit, 0, len(raw))
	for _, c := range raw {
		if strings.HasPrefix(c.Commit.Message, "Merge") {
			continue
		}

		sha := c.SHA
		if len(sha) > shortSHALength {
			sha = sha[:shortSHALength]
		}
		message, _, _ := strings.Cut(c.Commit.Message, "\n")

		commits = append(commits, domain.Commit{
			SHA:     sha,
			Message: message,
			Author:  c.Commit.Author.Name,
			Date:    c.Commit.Author.Date,
			URL:     c.HTMLURL,
			Repo:    repo,
		})
	}

	sort.SliceStable(commits, func(i, j int) bool {
		return commits[i].Date.After(commits[j].Date)
	})

	return commits
}

// parseGitHubCommits normalizes a raw commits listing body
func parseGitHubCommits(repo string) func([]byte) ([]byte, error) {
	return func(body []byte) ([]byte, error) {
		var raw []githubCommit
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse GitHub commits: %w", err)
		}
		return json.Marshal(normalizeCommits(raw, repo))
	}
}
