// Package festival implements the festival lifecycle: the state machine
// advancing one FestivalConfig through its phases, and the entry ledger
// collecting participant submissions.
package festival

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tribela/picrew-amuse/internal/domain"
	"github.com/tribela/picrew-amuse/internal/htmltext"
	"github.com/tribela/picrew-amuse/internal/messages"
	"github.com/tribela/picrew-amuse/internal/metrics"
	"github.com/tribela/picrew-amuse/internal/schedule"
)

const (
	// PicrewHost is the only link host that qualifies a mention as a
	// festival request.
	PicrewHost = "picrew.me"

	// MinEntries is the minimum number of unique participants; below it the
	// festival is cancelled at prepare end.
	MinEntries = 2

	// MaxImages caps the number of collage cells.
	MaxImages = 30
)

// Synthesizer renders the question/answer canvases for a set of entries.
type Synthesizer interface {
	Generate(ctx context.Context, entries []domain.Entry) error
}

// State is the pair of mutable values the poll loop owns: the watermark
// cursor and the (possibly absent) active festival. All mutation happens
// inside Engine transition methods on the poll loop's goroutine.
type State struct {
	Cursor   string
	Festival *domain.FestivalConfig
}

// Engine owns festival lifecycle transitions. It is not safe for concurrent
// use; the poll loop is its only caller.
type Engine struct {
	client       domain.SocialClient
	synth        Synthesizer
	questionPath string
	answerPath   string
	allowedHosts map[string]bool
	minEntries   int
	maxImages    int
	loc          *time.Location
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocation sets the zone wall-clock directives resolve in. Defaults to
// the process-local zone.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

// NewEngine wires a state machine over the given social client and
// synthesizer. questionPath and answerPath are where the synthesizer leaves
// its canvases.
func NewEngine(client domain.SocialClient, synth Synthesizer, questionPath, answerPath string, opts ...Option) *Engine {
	e := &Engine{
		client:       client,
		synth:        synth,
		questionPath: questionPath,
		answerPath:   answerPath,
		allowedHosts: map[string]bool{PicrewHost: true},
		minEntries:   MinEntries,
		maxImages:    MaxImages,
		loc:          time.Local,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleMention processes one inbound mention and advances the watermark
// cursor past it. Image mentions during an open prepare phase are left
// untouched on purpose; prepare end reads them in bulk.
func (e *Engine) HandleMention(ctx context.Context, st *State, m domain.Mention) error {
	status := m.Status
	replyVis := domain.ReplyVisibility(status.Visibility)
	link := htmltext.FirstLink(status.Content, e.allowedHosts)

	switch {
	case link != "":
		slog.InfoContext(ctx, "Picrew link detected", "status_id", status.ID)
		if st.Festival == nil {
			if err := e.startFestival(ctx, st, m, link); err != nil {
				return err
			}
		} else {
			slog.InfoContext(ctx, "Festival already running, replying notice")
			if err := e.postNotice(ctx, status, messages.AlreadyRunning, replyVis); err != nil {
				return err
			}
		}

	case len(status.Attachments) > 0:
		switch {
		case st.Festival == nil:
			slog.InfoContext(ctx, "Image mention without a running festival", "status_id", status.ID)
			if err := e.postNotice(ctx, status, messages.NoRunning, replyVis); err != nil {
				return err
			}
		case st.Festival.State != domain.StatePrepare:
			slog.InfoContext(ctx, "Image mention after submissions closed", "status_id", status.ID)
			if err := e.postNotice(ctx, status, messages.NotInPrepare, replyVis); err != nil {
				return err
			}
		default:
			slog.DebugContext(ctx, "Image mention during prepare phase, collected later", "status_id", status.ID)
		}
	}

	st.Cursor = m.ID
	return nil
}

// startFestival creates the FestivalConfig and posts the public announcement.
// A content-rejected announcement is retried once with the description
// replaced by a link back to the request; any other post failure discards the
// festival and notifies the requester.
func (e *Engine) startFestival(ctx context.Context, st *State, m domain.Mention, link string) error {
	status := m.Status
	content := htmltext.PlainText(status.Content)

	// The API delivers timestamps in UTC; wall-clock directives mean local
	// time, so the anchor is normalized before resolution.
	sched := schedule.Parse(content, status.CreatedAt.In(e.loc))

	description := strings.ReplaceAll(content, link, "")
	description = strings.ReplaceAll(description, "@"+e.client.Me(), "")
	description = schedule.StripDirectives(description)

	cfg := &domain.FestivalConfig{
		AnchorID:        m.ID,
		SourceLink:      link,
		Description:     description,
		PrepareDeadline: sched.PrepareDeadline,
		NameRevealAt:    sched.NameRevealAt,
		AnswerRevealAt:  sched.AnswerRevealAt,
		AllowMulti:      sched.AllowMulti,
		State:           domain.StatePrepare,
	}

	slog.InfoContext(ctx, "Starting festival",
		"anchor_id", cfg.AnchorID,
		"link", cfg.SourceLink,
		"prepare_deadline", cfg.PrepareDeadline,
		"name_reveal_at", cfg.NameRevealAt,
		"answer_reveal_at", cfg.AnswerRevealAt,
		"allow_multi", cfg.AllowMulti,
	)

	requester := e.client.FullHandle(status.Account)
	postID, err := e.client.CreatePost(ctx, domain.Post{
		Text:       e.announcement(requester, cfg),
		Visibility: domain.VisibilityPublic,
	})
	if errors.Is(err, domain.ErrContentRejected) && cfg.Description != "" {
		slog.WarnContext(ctx, "Announcement rejected, retrying with request link as description", "error", err)
		cfg.Description = status.URL
		postID, err = e.client.CreatePost(ctx, domain.Post{
			Text:       e.announcement(requester, cfg),
			Visibility: domain.VisibilityPublic,
		})
	}
	if err != nil {
		// The festival config is discarded and the requester notified; the
		// process itself is unaffected.
		slog.ErrorContext(ctx, "Announcement failed, discarding festival", "error", err)
		return e.postNotice(ctx, status, messages.FestivalFailed, domain.ReplyVisibility(status.Visibility))
	}

	cfg.PreparePostID = postID
	st.Festival = cfg
	metrics.PostsCreated.WithLabelValues("announcement").Inc()
	metrics.FestivalActive.Set(1)
	return nil
}

// PrepareEnd closes submissions: collects entries from replies to the
// announcement, cancels on insufficient participation, otherwise synthesizes
// the collages and publishes the question.
func (e *Engine) PrepareEnd(ctx context.Context, st *State) error {
	cfg := st.Festival

	replies, err := e.client.RepliesSince(ctx, cfg.PreparePostID, cfg.AnchorID)
	if err != nil {
		return fmt.Errorf("collecting entries: %w", err)
	}

	ledger := NewLedger(cfg.AllowMulti, e.maxImages)
	lastProcessed := ""
	for _, reply := range replies {
		handle := e.client.FullHandle(reply.Status.Account)
		more := ledger.Add(handle, reply.Status.Attachments)
		lastProcessed = reply.ID
		if !more {
			break
		}
	}
	for _, handle := range ledger.Handles() {
		cfg.AddEntry(handle)
	}

	if ledger.UniqueCount() < e.minEntries {
		slog.InfoContext(ctx, "Insufficient entries, cancelling festival", "entries", ledger.UniqueCount())
		_, err := e.client.CreatePost(ctx, domain.Post{
			Text:       messages.FestivalCancelled,
			InReplyTo:  cfg.PreparePostID,
			Visibility: domain.VisibilityPublic,
		})
		if err != nil {
			return fmt.Errorf("posting cancellation: %w", err)
		}
		metrics.PostsCreated.WithLabelValues("cancellation").Inc()
		metrics.FestivalActive.Set(0)
		st.Festival = nil
		return nil
	}

	if lastProcessed != "" {
		st.Cursor = lastProcessed
	}

	if err := e.synth.Generate(ctx, ledger.Entries()); err != nil {
		return fmt.Errorf("synthesizing collages: %w", err)
	}
	metrics.EntriesCollected.Add(float64(len(ledger.Entries())))

	mediaID, err := e.client.UploadMedia(ctx, e.questionPath)
	if err != nil {
		return fmt.Errorf("uploading question image: %w", err)
	}

	// When the reveal deadlines coincide the entries listing is folded into
	// the question post and QUESTION_PUBLISHED is skipped entirely.
	revealNow := cfg.NameRevealAt.Equal(cfg.PrepareDeadline)
	var withEntries []string
	if revealNow {
		withEntries = cfg.Entries
	}

	postID, err := e.client.CreatePost(ctx, domain.Post{
		Text:       messages.Question(withEntries),
		InReplyTo:  cfg.PreparePostID,
		Visibility: domain.VisibilityPublic,
		MediaIDs:   []string{mediaID},
	})
	if err != nil {
		return fmt.Errorf("posting question: %w", err)
	}
	metrics.PostsCreated.WithLabelValues("question").Inc()

	cfg.QuestionPostID = postID
	cfg.State = domain.StateQuestionPublished
	if revealNow {
		cfg.State = domain.StateNameRevealed
		cfg.EntriesPostID = postID
	}
	return nil
}

// RevealEntries posts the participant listing as an unlisted reply to the
// question post.
func (e *Engine) RevealEntries(ctx context.Context, st *State) error {
	cfg := st.Festival

	postID, err := e.client.CreatePost(ctx, domain.Post{
		Text:       messages.Entries(cfg.Entries),
		InReplyTo:  cfg.QuestionPostID,
		Visibility: domain.VisibilityUnlisted,
	})
	if err != nil {
		return fmt.Errorf("posting entries: %w", err)
	}
	metrics.PostsCreated.WithLabelValues("entries").Inc()

	cfg.EntriesPostID = postID
	cfg.State = domain.StateNameRevealed
	return nil
}

// RevealAnswer uploads the labeled collage, posts it publicly and ends the
// festival.
func (e *Engine) RevealAnswer(ctx context.Context, st *State) error {
	cfg := st.Festival

	mediaID, err := e.client.UploadMedia(ctx, e.answerPath)
	if err != nil {
		return fmt.Errorf("uploading answer image: %w", err)
	}

	_, err = e.client.CreatePost(ctx, domain.Post{
		Text:       messages.Answer(),
		InReplyTo:  cfg.EntriesPostID,
		Visibility: domain.VisibilityPublic,
		MediaIDs:   []string{mediaID},
	})
	if err != nil {
		return fmt.Errorf("posting answer: %w", err)
	}
	metrics.PostsCreated.WithLabelValues("answer").Inc()
	metrics.FestivalActive.Set(0)

	st.Festival = nil
	return nil
}

func (e *Engine) postNotice(ctx context.Context, status domain.Status, text string, vis domain.Visibility) error {
	_, err := e.client.CreatePost(ctx, domain.Post{
		Text:       fmt.Sprintf("@%s %s", status.Account, text),
		InReplyTo:  status.ID,
		Visibility: vis,
	})
	if err != nil {
		return fmt.Errorf("posting notice: %w", err)
	}
	metrics.PostsCreated.WithLabelValues("notice").Inc()
	return nil
}

// announcement renders the public festival-started post. When the name reveal
// coincides with the prepare deadline its slot says so instead of repeating
// the same clock time.
func (e *Engine) announcement(requester string, cfg *domain.FestivalConfig) string {
	prepareEnd := cfg.PrepareDeadline.Format("15:04")
	nameRevealAt := cfg.NameRevealAt.Format("15:04")
	answerRevealAt := cfg.AnswerRevealAt.Format("15:04")

	if nameRevealAt == prepareEnd {
		nameRevealAt = messages.NameRevealedAtSameTime
	}

	return messages.FestivalStarted(requester, cfg.SourceLink, prepareEnd, nameRevealAt, answerRevealAt, cfg.Description)
}
