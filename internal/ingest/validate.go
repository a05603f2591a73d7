package ingest

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strings"

	"tweet_collector/internal/model"
)

// adMarkers are the content-policy markers: records whose body text
// contains any of them are dropped outright, not flagged.
var adMarkers = []string{"ad", "sponsored"}

// Validate applies the server-side record policy: a record must carry an
// identity, and advertising content is rejected. Shared between ingestion
// and the shard read path.
func Validate(t model.WireTweet) bool {
	if t.TweetID == "" {
		return false
	}
	return !ContainsAdContent(t.Content)
}

// ContainsAdContent reports whether body text matches an advertising
// marker.
func ContainsAdContent(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range adMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ContentHash computes the durable dedup key from identity, trimmed body
// text, and timestamp. This is deliberately a different key than the
// client's in-flight identity key: the client suppresses resends of one
// extraction, while this hash dedups record content for all time. Records
// without identity or text hash to "" and are never accepted.
func ContentHash(t model.WireTweet) string {
	if t.TweetID == "" || t.Content == "" {
		return ""
	}

	payload, err := json.Marshal(struct {
		TweetID   string `json:"tweetId"`
		Text      string `json:"text"`
		Timestamp string `json:"timestamp"`
	}{t.TweetID, strings.TrimSpace(t.Content), t.CreatedAt})
	if err != nil {
		return ""
	}

	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])
}
