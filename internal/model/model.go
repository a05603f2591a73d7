// Package model defines the domain types used across the application.
package model

// Metrics holds engagement counters for a tweet. Each value is a
// non-negative integer encoded as a string; missing counters default to "0".
type Metrics struct {
	Replies  string `json:"replies"`
	Reshares string `json:"reshares"`
	Likes    string `json:"likes"`
	Views    string `json:"views"`
}

// Tweet is a single record extracted from the monitored timeline.
//
// ID is the stable identity derived from the tweet's canonical /status/
// link. It is assigned once at extraction time and never recomputed from
// display text.
type Tweet struct {
	ID           string   `json:"tweetId"`
	AuthorHandle string   `json:"authorHandle"`
	AuthorName   string   `json:"authorName"`
	Verified     bool     `json:"verified"`
	Text         string   `json:"text"`
	CreatedAt    string   `json:"createdAt"` // RFC3339, empty if unavailable
	Metrics      Metrics  `json:"metrics"`
	MediaURLs    []string `json:"mediaUrls"` // images (highest-res variant) first, then video sources
	HasMedia     bool     `json:"hasMedia"`
}

// WireTweet is the transformed record sent to and stored by the ingestion
// service. TweetID stays a string end to end: large tweet IDs do not fit a
// float64 and must never pass through a numeric type.
type WireTweet struct {
	TweetID      string `json:"tweet_id"`
	AuthorHandle string `json:"username"`
	AuthorName   string `json:"screen_name"`
	Verified     bool   `json:"verified"`
	Content      string `json:"content"`
	CreatedAt    string `json:"created_at"`
	ReplyCount   int64  `json:"reply_count"`
	ReshareCount int64  `json:"reshare_count"`
	LikeCount    int64  `json:"like_count"`
	ViewCount    int64  `json:"view_count"`
	MediaURL     string `json:"media_url,omitempty"`
}

// AuthorGroup is one per-author group of the batch envelope: author
// metadata plus the ordered tweets collected for that author.
type AuthorGroup struct {
	Handle   string
	Name     string
	Verified bool
	Tweets   []WireTweet
}

// PageEventKind identifies the type of a host-document event.
type PageEventKind string

// Supported page event kinds.
const (
	EventMutation PageEventKind = "mutation"
	EventScroll   PageEventKind = "scroll"
)

// PageEvent is a DOM notification delivered by the page bridge.
type PageEvent struct {
	Kind PageEventKind `json:"kind"`

	// Articles is the number of entity containers among the added nodes
	// (mutation events only).
	Articles int `json:"articles,omitempty"`

	// Scroll geometry (scroll events only).
	Position int `json:"position,omitempty"`
	Viewport int `json:"viewport,omitempty"`
	Height   int `json:"height,omitempty"`
}

// NearBottom reports whether a scroll event landed close enough to the end
// of the document to warrant loading-triggered extraction.
func (e PageEvent) NearBottom() bool {
	return e.Kind == EventScroll && e.Position+e.Viewport >= e.Height-1000
}
