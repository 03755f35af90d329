package domain

import (
	"time"

	"github.com/goccy/go-json"
)

// Freshness tags where a feed payload came from
type Freshness string

const (
	FreshnessLive  Freshness = "LIVE"
	FreshnessCache Freshness = "CACHE"
	FreshnessMock  Freshness = "MOCK"
)

// FetchResult is a remote payload together with its freshness tag
type FetchResult struct {
	Data      json.RawMessage `json:"data"`
	Freshness Freshness       `json:"freshness"`
}

// SocialPost is one entry of the social timeline feed
type SocialPost struct {
	ID             string      `json:"id"`
	Text           string      `json:"text"`
	URL            string      `json:"url"`
	AuthorName     string      `json:"author_name"`
	AuthorUsername string      `json:"author_username"`
	CreatedAt      time.Time   `json:"created_at"`
	IsRetweet      bool        `json:"is_retweet"`
	Likes          int64       `json:"likes"`
	Reposts        int64       `json:"reposts"`
	Replies        int64       `json:"replies"`
	Media          []PostMedia `json:"media,omitempty"`
}

// PostMedia is an attachment of a SocialPost
type PostMedia struct {
	Type            string `json:"type"`
	URL             string `json:"url,omitempty"`
	PreviewImageURL string `json:"preview_image_url,omitempty"`
	AltText         string `json:"alt_text,omitempty"`
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
}

// Commit is one entry of the repository activity feed
type Commit struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	URL     string    `json:"url"`
	Repo    string    `json:"repo"`
}

// Video is one entry of the channel uploads feed
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
	URL          string    `json:"url"`
}

// FeedStatus describes how feeds are currently served
type FeedStatus struct {
	Mode  string   `json:"mode"`
	Feeds []string `json:"feeds"`

	// Breakers maps feed name to circuit state; only set in cached mode
	Breakers map[string]string `json:"breakers,omitempty"`
}
