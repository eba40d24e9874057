// Package mastodon implements the SocialClient capability on top of the
// Mastodon REST API.
package mastodon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	gomastodon "github.com/mattn/go-mastodon"

	"github.com/tribela/picrew-amuse/internal/domain"
	"github.com/tribela/picrew-amuse/internal/platform/backoff"
)

// mediaReadyTimeout bounds the wait for asynchronous media processing. On
// expiry the upload fails as a transient error and the tick retries it.
const mediaReadyTimeout = 5 * time.Minute

// Client adapts go-mastodon to the domain.SocialClient port.
type Client struct {
	api    *gomastodon.Client
	clock  clockwork.Clock
	me     string
	domain string
}

// New authenticates against the instance and resolves the bot's own account
// and home domain.
func New(ctx context.Context, server, accessToken string, clock clockwork.Clock) (*Client, error) {
	api := gomastodon.NewClient(&gomastodon.Config{
		Server:      server,
		AccessToken: accessToken,
	})

	me, err := api.GetAccountCurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving own account: %w", err)
	}

	instance, err := api.GetInstance(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving instance: %w", err)
	}

	return &Client{
		api:    api,
		clock:  clock,
		me:     me.Acct,
		domain: instance.URI,
	}, nil
}

func (c *Client) MentionsSince(ctx context.Context, sinceID string) ([]domain.Mention, error) {
	var pg gomastodon.Pagination
	if sinceID != "" {
		pg.SinceID = gomastodon.ID(sinceID)
	}

	notifications, err := c.api.GetNotifications(ctx, &pg)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}

	// The API delivers newest first; the engine wants oldest first.
	mentions := make([]domain.Mention, 0, len(notifications))
	for i := len(notifications) - 1; i >= 0; i-- {
		n := notifications[i]
		if n.Type != "mention" || n.Status == nil {
			continue
		}
		mentions = append(mentions, domain.Mention{
			ID:     string(n.ID),
			Status: toStatus(n.Status),
		})
	}
	return mentions, nil
}

func (c *Client) RepliesSince(ctx context.Context, postID, sinceID string) ([]domain.Mention, error) {
	mentions, err := c.MentionsSince(ctx, sinceID)
	if err != nil {
		return nil, err
	}

	replies := mentions[:0]
	for _, m := range mentions {
		if m.Status.InReplyToID == postID {
			replies = append(replies, m)
		}
	}
	return replies, nil
}

func (c *Client) CreatePost(ctx context.Context, post domain.Post) (string, error) {
	toot := &gomastodon.Toot{
		Status:      post.Text,
		InReplyToID: gomastodon.ID(post.InReplyTo),
		Visibility:  string(post.Visibility),
	}
	for _, id := range post.MediaIDs {
		toot.MediaIDs = append(toot.MediaIDs, gomastodon.ID(id))
	}

	status, err := c.api.PostStatus(ctx, toot)
	if err != nil {
		// go-mastodon surfaces API failures as plain errors carrying the
		// HTTP status text; 422 is the platform's content rejection.
		if strings.Contains(err.Error(), "422") {
			return "", fmt.Errorf("%w: %v", domain.ErrContentRejected, err)
		}
		return "", fmt.Errorf("posting status: %w", err)
	}
	return string(status.ID), nil
}

// UploadMedia uploads a local file and waits for the instance to finish
// processing it, polling with logarithmically growing sleeps.
func (c *Client) UploadMedia(ctx context.Context, path string) (string, error) {
	att, err := c.api.UploadMedia(ctx, path)
	if err != nil {
		return "", fmt.Errorf("uploading media: %w", err)
	}

	policy := backoff.Policy{
		MaxWait: mediaReadyTimeout,
		OnWait: func(attempt int, sleep time.Duration) {
			slog.DebugContext(ctx, "Media still processing", "media_id", att.ID, "attempt", attempt, "sleep", sleep)
		},
	}
	err = backoff.Poll(ctx, c.clock, policy, func(ctx context.Context) (bool, error) {
		if att.URL != "" {
			return true, nil
		}
		refreshed, err := c.api.GetMedia(ctx, att.ID)
		if err != nil {
			return false, fmt.Errorf("checking media status: %w", err)
		}
		att = refreshed
		return att.URL != "", nil
	})
	var timeout *backoff.ErrTimeout
	if errors.As(err, &timeout) {
		return "", fmt.Errorf("%w: media %s", domain.ErrMediaNotReady, att.ID)
	}
	if err != nil {
		return "", err
	}

	return string(att.ID), nil
}

func (c *Client) FullHandle(acct string) string {
	if strings.Contains(acct, "@") {
		return acct
	}
	return acct + "@" + c.domain
}

func (c *Client) Me() string {
	return c.me
}

func toStatus(s *gomastodon.Status) domain.Status {
	status := domain.Status{
		ID:          string(s.ID),
		Account:     s.Account.Acct,
		Content:     s.Content,
		URL:         s.URL,
		CreatedAt:   s.CreatedAt,
		Visibility:  domain.Visibility(s.Visibility),
		InReplyToID: replyTarget(s.InReplyToID),
	}
	for _, att := range s.MediaAttachments {
		status.Attachments = append(status.Attachments, domain.Attachment{
			RemoteURL:  att.RemoteURL,
			URL:        att.URL,
			PreviewURL: att.PreviewURL,
		})
	}
	return status
}

// replyTarget normalizes go-mastodon's untyped in_reply_to_id field.
func replyTarget(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}
