package domain

import (
	"time"
)

// EventType identifies what a collected client event describes
type EventType string

const (
	EventTypePageView   EventType = "page_view"
	EventTypeClick      EventType = "click"
	EventTypeTimeOnPage EventType = "time_on_page"
)

// Valid reports whether t is one of the accepted event types
func (t EventType) Valid() bool {
	switch t {
	case EventTypePageView, EventTypeClick, EventTypeTimeOnPage:
		return true
	}
	return false
}

// Buffered reports whether events of this type go through the event buffer
// instead of being written directly.
func (t EventType) Buffered() bool {
	return t == EventTypeClick || t == EventTypeTimeOnPage
}

// VisitRecord is one page view stored in analytics_visits.
// Empty optional strings are stored as NULL.
type VisitRecord struct {
	ID          int64     `json:"id" db:"id"`
	Path        string    `json:"path" db:"path"`
	VisitorHash string    `json:"visitor_hash" db:"visitor_hash"`
	Referer     string    `json:"referer,omitempty" db:"referer"`
	UserAgent   string    `json:"user_agent,omitempty" db:"user_agent"`
	Country     string    `json:"country,omitempty" db:"country"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// EventRecord is one buffered interaction event stored in analytics_events
type EventRecord struct {
	ID          int64     `json:"id" db:"id"`
	Type        EventType `json:"type" db:"type"`
	Path        string    `json:"path" db:"path"`
	VisitorHash string    `json:"visitor_hash,omitempty" db:"visitor_hash"`
	ElementTag  string    `json:"element_tag,omitempty" db:"element_tag"`
	ElementID   string    `json:"element_id,omitempty" db:"element_id"`
	ElementText string    `json:"element_text,omitempty" db:"element_text"`
	Href        string    `json:"href,omitempty" db:"href"`
	Duration    *int64    `json:"duration,omitempty" db:"duration"` // milliseconds
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// CollectRequest is the JSON body accepted by the collect endpoint
type CollectRequest struct {
	Type        string `json:"type" validate:"required,oneof=page_view click time_on_page"`
	Path        string `json:"path" validate:"required,max=2048"`
	Referer     string `json:"referer,omitempty" validate:"omitempty,max=2048"`
	ElementTag  string `json:"elementTag,omitempty" validate:"omitempty,max=64"`
	ElementID   string `json:"elementId,omitempty" validate:"omitempty,max=256"`
	ElementText string `json:"elementText,omitempty"`
	Href        string `json:"href,omitempty" validate:"omitempty,max=2048"`
	Duration    *int64 `json:"duration,omitempty" validate:"omitempty,min=0"`
}

// DailyStats aggregates one UTC calendar day
type DailyStats struct {
	Date           string `json:"date"`
	Visits         int64  `json:"visits"`
	UniqueVisitors int64  `json:"unique_visitors"`
	Events         int64  `json:"events"`
}

// TopPage is a path ranked by visits
type TopPage struct {
	Path           string `json:"path"`
	Visits         int64  `json:"visits"`
	UniqueVisitors int64  `json:"unique_visitors"`
}

// TopReferer is a referer ranked by visits
type TopReferer struct {
	Referer string `json:"referer"`
	Count   int64  `json:"count"`
}

// PageTime is the mean time spent on a path
type PageTime struct {
	Path       string  `json:"path"`
	AvgSeconds float64 `json:"avg_seconds"`
	Samples    int64   `json:"samples"`
}

// CountryStats aggregates visits per ISO country code
type CountryStats struct {
	Country        string `json:"country"`
	Visits         int64  `json:"visits"`
	UniqueVisitors int64  `json:"unique_visitors"`
}

// EventTypeCount is one entry of the event type breakdown
type EventTypeCount struct {
	Type  EventType `json:"type"`
	Count int64     `json:"count"`
}

// Summary holds window totals for the dashboard header
type Summary struct {
	Days           int     `json:"days"`
	TotalVisits    int64   `json:"total_visits"`
	UniqueVisitors int64   `json:"unique_visitors"`
	TotalEvents    int64   `json:"total_events"`
	AvgTimeOnPage  float64 `json:"avg_time_on_page"`
}

// RateLimitInfo represents rate limiting information
type RateLimitInfo struct {
	Limit        int64         `json:"limit"`
	RequestCount int64         `json:"request_count"`
	WindowStart  time.Time     `json:"window_start"`
	TTL          time.Duration `json:"ttl"`
	IsAllowed    bool          `json:"is_allowed"`
}

// Remaining returns how many requests are left in the current window
func (r *RateLimitInfo) Remaining() int64 {
	if r.RequestCount >= r.Limit {
		return 0
	}
	return r.Limit - r.RequestCount
}

// ClientInfo describes who sent a collect request
type ClientInfo struct {
	IP        string
	UserAgent string
	Country   string
}
