package feeds

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"site-analytics/internal/domain"
	"site-analytics/pkg/errors"
	"site-analytics/pkg/logger"
)

const (
	// FeedYouTube is the channel uploads feed
	FeedYouTube = "youtube"

	youtubeVideoLimit = 5
)

// YouTubeConfig configures the uploads source. Endpoint overrides the API
// base URL.
type YouTubeConfig struct {
	APIKey    string
	ChannelID string
	Endpoint  string
}

// YouTubeSource lists the newest uploads of a channel through the Data API v3
type YouTubeSource struct {
	cfg    YouTubeConfig
	logger *logger.Logger
}

// NewYouTubeSource creates the uploads source
func NewYouTubeSource(cfg YouTubeConfig, logger *logger.Logger) *YouTubeSource {
	return &YouTubeSource{
		cfg:    cfg,
		logger: logger.Named("youtube"),
	}
}

// Name returns the feed name
func (s *YouTubeSource) Name() string {
	return FeedYouTube
}

// FetchRaw searches the channel's latest videos and returns them as a JSON array of Video
func (s *YouTubeSource) FetchRaw(ctx context.Context) ([]byte, error) {
	if s.cfg.APIKey == "" || s.cfg.ChannelID == "" {
		return nil, fmt.Errorf("youtube api key or channel id missing: %w", ErrNotConfigured)
	}

	s.logger.WithField("channel_id", s.cfg.ChannelID).Debug("Fetching YouTube uploads")

	opts := []option.ClientOption{option.WithAPIKey(s.cfg.APIKey)}
	if s.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.cfg.Endpoint))
	}

	youtubeService, err := youtube.NewService(ctx, opts...)
	if err != nil {
		s.logger.WithError(err).Error("Failed to create YouTube service")
		return nil, errors.NewInternalError("Failed to initialize YouTube service", err)
	}

	searchResponse, err := youtubeService.Search.List([]string{"snippet"}).
		ChannelId(s.cfg.ChannelID).
		Order("date").
		Type("video").
		MaxResults(youtubeVideoLimit).
		Context(ctx).
		Do()
	if err != nil {
		s.logger.WithError(err).Warn("Failed to search YouTube uploads")
		return nil, errors.NewExternalError("Failed to list YouTube uploads", err)
	}

	videos := make([]domain.Video, 0, len(searchResponse.Items))
	for _, item := range searchResponse.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}

		publishedAt, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)

		videos = append(videos, domain.Video{
			ID:           item.Id.VideoId,
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			ThumbnailURL: thumbnailURL(item.Snippet.Thumbnails),
			PublishedAt:  publishedAt,
			URL:          "https://www.youtube.com/watch?v=" + item.Id.VideoId,
		})
	}

	s.logger.WithField("videos", len(videos)).Debug("YouTube uploads fetched")

	return json.Marshal(videos)
}

// thumbnailURL picks the largest available thumbnail
func thumbnailURL(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*youtube.Thumbnail{t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}
