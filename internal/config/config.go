// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Agent holds the configuration for the extraction agent.
type Agent struct {
	// IngestURL is the ingestion service endpoint batches are delivered to.
	IngestURL string

	// SnapshotURL serves the current rendered document HTML.
	SnapshotURL string

	// EventsURL is the websocket endpoint streaming DOM events.
	EventsURL string

	// JournalPath is the SQLite database holding the seen-tweet journal.
	JournalPath string

	LogLevel string
}

// Server holds the configuration for the ingestion service.
type Server struct {
	Port           int
	DataDir        string
	LogLevel       string
	AllowedOrigins []string
}

// LoadAgent reads the agent configuration from environment variables.
func LoadAgent() (*Agent, error) {
	snapshotURL := os.Getenv("PAGE_SNAPSHOT_URL")
	if snapshotURL == "" {
		return nil, fmt.Errorf("PAGE_SNAPSHOT_URL is required")
	}

	eventsURL := os.Getenv("PAGE_EVENTS_URL")
	if eventsURL == "" {
		return nil, fmt.Errorf("PAGE_EVENTS_URL is required")
	}

	ingestURL := os.Getenv("INGEST_URL")
	if ingestURL == "" {
		ingestURL = "http://localhost:3000/store-data"
	}

	journalPath := os.Getenv("JOURNAL_PATH")
	if journalPath == "" {
		journalPath = "./data/agent.db"
	}

	return &Agent{
		IngestURL:   ingestURL,
		SnapshotURL: snapshotURL,
		EventsURL:   eventsURL,
		JournalPath: journalPath,
		LogLevel:    logLevel(),
	}, nil
}

// LoadServer reads the ingestion service configuration from environment
// variables.
func LoadServer() (*Server, error) {
	port := 3000
	if p := os.Getenv("PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", p, err)
		}
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}

	origins := defaultAllowedOrigins()
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		origins = nil
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			origins = append(origins, s)
		}
	}

	return &Server{
		Port:           port,
		DataDir:        dataDir,
		LogLevel:       logLevel(),
		AllowedOrigins: origins,
	}, nil
}

// OriginAllowed checks an Origin header value against the allow list.
// Requests without an Origin header (origin == "") are always allowed.
// A pattern ending in "*" matches any origin with that prefix.
func (c *Server) OriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, pattern := range c.AllowedOrigins {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(origin, prefix) {
				return true
			}
			continue
		}
		if origin == pattern {
			return true
		}
	}
	return false
}

func defaultAllowedOrigins() []string {
	return []string{
		"chrome-extension://*",
		"https://twitter.com",
		"https://x.com",
		"http://localhost:3000",
	}
}

func logLevel() string {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}
