package feeds

import (
	"context"
	"embed"
	"fmt"
)

//go:embed fixtures/*.json
var fixtures embed.FS

const defaultMockRepo = "aleromano92/aleromano.com"

// MockSource serves an embedded fixture, normalized the same way as the live payload
type MockSource struct {
	name    string
	fixture string
	parse   func([]byte) ([]byte, error)
}

// NewMockSource returns the fixture-backed source for a feed name. repo labels
// mock commits and defaults to the site repository.
func NewMockSource(name, repo string) (*MockSource, error) {
	if repo == "" {
		repo = defaultMockRepo
	}

	switch name {
	case FeedTwitter:
		return &MockSource{name: name, fixture: "fixtures/twitter_timeline.json", parse: parseTwitterTimeline}, nil
	case FeedGitHub:
		return &MockSource{name: name, fixture: "fixtures/github_commits.json", parse: parseGitHubCommits(repo)}, nil
	case FeedYouTube:
		return &MockSource{name: name, fixture: "fixtures/youtube_videos.json"}, nil
	}

	return nil, fmt.Errorf("no mock fixture for feed %q", name)
}

// Name returns the feed name
func (s *MockSource) Name() string {
	return s.name
}

// FetchRaw returns the fixture payload
func (s *MockSource) FetchRaw(ctx context.Context) ([]byte, error) {
	body, err := fixtures.ReadFile(s.fixture)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s fixture: %w", s.name, err)
	}

	if s.parse == nil {
		return body, nil
	}
	return s.parse(body)
}
