package domain

import (
	"context"
	"time"
)

// Visibility mirrors the platform's status visibility levels. Public inbound
// mentions always get unlisted replies to keep caution notices out of the
// public timeline.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
)

// ReplyVisibility returns the visibility a notice reply should use for a
// mention that arrived with the given visibility.
func ReplyVisibility(inbound Visibility) Visibility {
	if inbound == VisibilityPublic {
		return VisibilityUnlisted
	}
	return inbound
}

// Attachment is one image attached to a status, with the candidate URLs the
// synthesizer tries in order.
type Attachment struct {
	RemoteURL  string
	URL        string
	PreviewURL string
}

// Candidates returns the non-empty fetch URLs in priority order.
func (a Attachment) Candidates() []string {
	urls := make([]string, 0, 3)
	for _, u := range []string{a.RemoteURL, a.URL, a.PreviewURL} {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// Status is an inbound message as the core sees it: HTML content plus the
// metadata the engine needs.
type Status struct {
	ID          string
	Account     string // acct as reported by the platform, possibly local-only
	Content     string // HTML body
	URL         string // canonical link to the status
	CreatedAt   time.Time
	Visibility  Visibility
	InReplyToID string
	Attachments []Attachment
}

// Mention is one inbound mention notification.
type Mention struct {
	ID     string // notification id, the watermark unit
	Status Status
}

// Post is an outbound status.
type Post struct {
	Text       string
	InReplyTo  string
	Visibility Visibility
	MediaIDs   []string
}

// SocialClient is the capability the core requires from the social platform.
// Implementations live under internal/adapter.
type SocialClient interface {
	// MentionsSince returns mention notifications newer than sinceID,
	// oldest first. An empty sinceID means "from the beginning".
	MentionsSince(ctx context.Context, sinceID string) ([]Mention, error)

	// RepliesSince returns the mentions newer than sinceID that are direct
	// replies to postID, oldest first.
	RepliesSince(ctx context.Context, postID, sinceID string) ([]Mention, error)

	// CreatePost publishes a status and returns its id.
	CreatePost(ctx context.Context, post Post) (string, error)

	// UploadMedia uploads a local file and blocks until the platform has
	// finished processing it, returning the media id.
	UploadMedia(ctx context.Context, path string) (string, error)

	// FullHandle resolves an acct to its fully-qualified form
	// (user@instance), qualifying local accounts with the home instance.
	FullHandle(acct string) string

	// Me returns the bot's own acct.
	Me() string
}
