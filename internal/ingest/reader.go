package ingest

import (
	"strconv"

	"tweet_collector/internal/model"
)

// DefaultPageLimit is the page size used when the caller does not supply
// one.
const DefaultPageLimit = 50

// TweetPage is one page of the merged shard view.
type TweetPage struct {
	Total  int           `json:"total"`
	Page   int           `json:"page"`
	Limit  int           `json:"limit"`
	Tweets []model.Tweet `json:"tweets"`
}

// ReadPage merges all shards and returns the requested page. Pages are
// 1-indexed; out-of-range values fall back to the defaults. Total always
// reports the full deduplicated count.
func (s *FileStore) ReadPage(page, limit int) (TweetPage, error) {
	merged, err := s.ReadMerged()
	if err != nil {
		return TweetPage{}, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}

	start := (page - 1) * limit
	end := min(start+limit, len(merged))
	if start > len(merged) {
		start = len(merged)
	}

	tweets := make([]model.Tweet, 0, end-start)
	for _, w := range merged[start:end] {
		tweets = append(tweets, ToRecord(w))
	}

	return TweetPage{
		Total:  len(merged),
		Page:   page,
		Limit:  limit,
		Tweets: tweets,
	}, nil
}

// ToRecord maps a stored wire record back to the normalized record shape,
// substituting documented defaults for missing fields.
func ToRecord(w model.WireTweet) model.Tweet {
	t := model.Tweet{
		ID:           w.TweetID,
		AuthorHandle: w.AuthorHandle,
		AuthorName:   w.AuthorName,
		Verified:     w.Verified,
		Text:         w.Content,
		CreatedAt:    w.CreatedAt,
		Metrics: model.Metrics{
			Replies:  strconv.FormatInt(w.ReplyCount, 10),
			Reshares: strconv.FormatInt(w.ReshareCount, 10),
			Likes:    strconv.FormatInt(w.LikeCount, 10),
			Views:    strconv.FormatInt(w.ViewCount, 10),
		},
		MediaURLs: []string{},
	}
	if t.AuthorHandle == "" {
		t.AuthorHandle = "@unknown"
	}
	if t.AuthorName == "" {
		t.AuthorName = "Unknown User"
	}
	if t.Text == "" {
		t.Text = "No Text"
	}
	if w.MediaURL != "" {
		t.MediaURLs = append(t.MediaURLs, w.MediaURL)
		t.HasMedia = true
	}
	return t
}
