// Package storage defines the persistence interface and its implementations.
package storage

import "context"

// Journal records tweet identities that have been successfully delivered,
// so a restarted agent does not resend tweets the ingestion service has
// already accepted. It is best-effort hardening: losing the journal only
// costs duplicate sends, which the server-side dedup absorbs.
type Journal interface {
	MarkSeen(ctx context.Context, tweetID string) error
	IsSeen(ctx context.Context, tweetID string) (bool, error)
	SeenCount(ctx context.Context) (int, error)

	Close() error
}
