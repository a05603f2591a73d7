// Package ingest implements the server half of the pipeline: the
// single-consumer ingestion queue, record validation, content hashing, the
// persistent dedup store, and the shard read path.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tweet_collector/internal/model"
)

// IndexFile is the persistent dedup store: a JSON array of content hashes,
// one per record ever accepted.
const IndexFile = "unique_tweets.json"

// FileStore owns the data directory: the dedup index, its backup, and the
// immutable shard files. It holds no locks; all mutation goes through the
// Queue's single worker.
type FileStore struct {
	dir string
	log *slog.Logger
}

// NewFileStore creates a FileStore rooted at dir.
func NewFileStore(dir string, log *slog.Logger) *FileStore {
	return &FileStore{dir: dir, log: log}
}

// LoadIndex reads the full dedup index into memory. A missing index file
// yields an empty set.
func (s *FileStore) LoadIndex() (map[string]struct{}, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, IndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]struct{}), nil
		}
		return nil, fmt.Errorf("read dedup index: %w", err)
	}

	var hashes []string
	if err := json.Unmarshal(data, &hashes); err != nil {
		return nil, fmt.Errorf("parse dedup index: %w", err)
	}

	set := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	return set, nil
}

// SaveIndex rewrites the dedup index in full, copying the previous file to
// a .backup suffix first. Backup failures are logged, never fatal.
func (s *FileStore) SaveIndex(hashes map[string]struct{}) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	path := filepath.Join(s.dir, IndexFile)
	if err := copyFile(path, path+".backup"); err != nil && !os.IsNotExist(err) {
		s.log.Error("backup dedup index", "error", err)
	}

	list := make([]string, 0, len(hashes))
	for h := range hashes {
		list = append(list, h)
	}
	sort.Strings(list)

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal dedup index: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("write dedup index: %w", err)
	}
	return nil
}

// WriteShard persists a batch of accepted records as a new immutable shard
// named by ingestion timestamp, and returns the shard's base filename.
func (s *FileStore) WriteShard(records []model.WireTweet) (string, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal shard: %w", err)
	}

	// O_EXCL keeps shards write-once even if two jobs land on the same
	// millisecond.
	ms := time.Now().UnixMilli()
	for {
		name := fmt.Sprintf("tweets_%d.json", ms)
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
		if os.IsExist(err) {
			ms++
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create shard: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("write shard: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close shard: %w", err)
		}
		return name, nil
	}
}

// ReadMerged folds every shard into a single deduplicated, timestamp-
// descending list. Corrupt shards are logged and skipped; records failing
// validation are dropped, same policy as ingestion.
func (s *FileStore) ReadMerged() ([]model.WireTweet, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list data directory: %w", err)
	}

	byID := make(map[string]struct{})
	var merged []model.WireTweet

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || name == IndexFile {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			s.log.Error("read shard", "file", name, "error", err)
			continue
		}

		var records []model.WireTweet
		if err := json.Unmarshal(data, &records); err != nil {
			s.log.Error("parse shard", "file", name, "error", err)
			continue
		}

		for _, r := range records {
			if !Validate(r) {
				continue
			}
			// Same identity in two shards should not happen, but is
			// tolerated: first occurrence wins.
			if _, ok := byID[r.TweetID]; ok {
				continue
			}
			byID[r.TweetID] = struct{}{}
			merged = append(merged, r)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return parseWhen(merged[i].CreatedAt).After(parseWhen(merged[j].CreatedAt))
	})
	return merged, nil
}

// parseWhen maps unparseable timestamps to the zero time so they sort last
// under descending order.
func parseWhen(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
