package festival

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tribela/picrew-amuse/internal/domain"
	"github.com/tribela/picrew-amuse/internal/messages"
)

type mockClient struct {
	mentions []domain.Mention
	replies  map[string][]domain.Mention

	posts    []domain.Post
	postErrs []error
	uploads  []string
}

func (m *mockClient) MentionsSince(_ context.Context, _ string) ([]domain.Mention, error) {
	return m.mentions, nil
}

func (m *mockClient) RepliesSince(_ context.Context, postID, _ string) ([]domain.Mention, error) {
	return m.replies[postID], nil
}

func (m *mockClient) CreatePost(_ context.Context, post domain.Post) (string, error) {
	m.posts = append(m.posts, post)
	if len(m.postErrs) > 0 {
		err := m.postErrs[0]
		m.postErrs = m.postErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("post-%d", len(m.posts)), nil
}

func (m *mockClient) UploadMedia(_ context.Context, path string) (string, error) {
	m.uploads = append(m.uploads, path)
	return fmt.Sprintf("media-%d", len(m.uploads)), nil
}

func (m *mockClient) FullHandle(acct string) string {
	if strings.Contains(acct, "@") {
		return acct
	}
	return acct + "@local.test"
}

func (m *mockClient) Me() string { return "picrew_bot" }

type mockSynth struct {
	entries []domain.Entry
	err     error
}

func (s *mockSynth) Generate(_ context.Context, entries []domain.Entry) error {
	s.entries = entries
	return s.err
}

const picrewLink = "https://picrew.me/image_maker/12345"

func requestMention(id string) domain.Mention {
	return domain.Mention{
		ID: id,
		Status: domain.Status{
			ID:         "status-" + id,
			Account:    "alice",
			Content:    fmt.Sprintf(`<p>@picrew_bot <a href="%s">%s</a></p><p>마감: 10분</p><p>재밌겠다</p>`, picrewLink, picrewLink),
			URL:        "https://local.test/@alice/" + id,
			CreatedAt:  time.Date(2024, 3, 1, 14, 0, 0, 0, time.Local),
			Visibility: domain.VisibilityPublic,
		},
	}
}

func imageMention(id, acct string, urls ...string) domain.Mention {
	var atts []domain.Attachment
	for _, u := range urls {
		atts = append(atts, domain.Attachment{URL: u})
	}
	return domain.Mention{
		ID: id,
		Status: domain.Status{
			ID:          "status-" + id,
			Account:     acct,
			Content:     "<p>@picrew_bot 참가합니다</p>",
			Visibility:  domain.VisibilityPublic,
			Attachments: atts,
		},
	}
}

func newTestEngine(client *mockClient, synth *mockSynth) *Engine {
	return NewEngine(client, synth, "question.png", "answer.png")
}

func TestHandleMention_StartsFestival(t *testing.T) {
	client := &mockClient{}
	engine := newTestEngine(client, &mockSynth{})
	st := &State{}

	err := engine.HandleMention(context.Background(), st, requestMention("n1"))
	require.NoError(t, err)

	require.NotNil(t, st.Festival)
	assert.Equal(t, "n1", st.Festival.AnchorID)
	assert.Equal(t, picrewLink, st.Festival.SourceLink)
	assert.Equal(t, domain.StatePrepare, st.Festival.State)
	assert.Equal(t, "post-1", st.Festival.PreparePostID)
	assert.Equal(t, "n1", st.Cursor)

	// 마감: 10분 applied to the anchor, later phases defaulted and chained.
	anchor := time.Date(2024, 3, 1, 14, 0, 0, 0, time.Local)
	assert.Equal(t, anchor.Add(10*time.Minute), st.Festival.PrepareDeadline)
	assert.Equal(t, anchor.Add(25*time.Minute), st.Festival.NameRevealAt)
	assert.Equal(t, anchor.Add(55*time.Minute), st.Festival.AnswerRevealAt)

	require.Len(t, client.posts, 1)
	post := client.posts[0]
	assert.Equal(t, domain.VisibilityPublic, post.Visibility)
	assert.Empty(t, post.InReplyTo)
	assert.Contains(t, post.Text, "픽락관이 시작되었습니다")
	assert.Contains(t, post.Text, "alice@local.test")
	assert.Contains(t, post.Text, picrewLink)
	assert.Contains(t, post.Text, "재밌겠다")
	assert.NotContains(t, post.Text, "마감: 10분", "directive lines must be stripped from the description")
}

func TestStartFestival_WallClockResolvesInBotZone(t *testing.T) {
	kst := time.FixedZone("KST", 9*60*60)
	client := &mockClient{}
	engine := NewEngine(client, &mockSynth{}, "question.png", "answer.png", WithLocation(kst))
	st := &State{}

	// The API reports 05:00 UTC, which is 14:00 in the bot's zone. 23:00 must
	// mean 23:00 local the same day, not 23:00 UTC.
	m := requestMention("n8")
	m.Status.CreatedAt = time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC)
	m.Status.Content = fmt.Sprintf(`<p>@picrew_bot <a href="%s">%s</a></p><p>마감: 23:00</p>`, picrewLink, picrewLink)

	err := engine.HandleMention(context.Background(), st, m)
	require.NoError(t, err)

	require.NotNil(t, st.Festival)
	want := time.Date(2024, 3, 1, 23, 0, 0, 0, kst)
	assert.True(t, st.Festival.PrepareDeadline.Equal(want),
		"got %s, want %s", st.Festival.PrepareDeadline, want)
	assert.True(t, st.Festival.NameRevealAt.Equal(want.Add(15*time.Minute)))

	require.Len(t, client.posts, 1)
	assert.Contains(t, client.posts[0].Text, "참가신청 마감: 23:00",
		"announcement clock times render in the bot's zone")
}

func TestHandleMention_AlreadyRunningNotice(t *testing.T) {
	client := &mockClient{}
	engine := newTestEngine(client, &mockSynth{})
	st := &State{Festival: &domain.FestivalConfig{State: domain.StatePrepare}}

	err := engine.HandleMention(context.Background(), st, requestMention("n2"))
	require.NoError(t, err)

	require.Len(t, client.posts, 1)
	post := client.posts[0]
	assert.Contains(t, post.Text, messages.AlreadyRunning)
	assert.Equal(t, "status-n2", post.InReplyTo)
	assert.Equal(t, domain.VisibilityUnlisted, post.Visibility, "public mentions get unlisted replies")
	assert.Equal(t, domain.StatePrepare, st.Festival.State)
}

func TestHandleMention_ImageWithoutFestival(t *testing.T) {
	client := &mockClient{}
	engine := newTestEngine(client, &mockSynth{})
	st := &State{}

	err := engine.HandleMention(context.Background(), st, imageMention("n3", "bob", "img"))
	require.NoError(t, err)

	require.Len(t, client.posts, 1)
	assert.Contains(t, client.posts[0].Text, messages.NoRunning)
	assert.Equal(t, "n3", st.Cursor)
}

func TestHandleMention_ImageAfterSubmissionsClosed(t *testing.T) {
	client := &mockClient{}
	engine := newTestEngine(client, &mockSynth{})
	st := &State{Festival: &domain.FestivalConfig{State: domain.StateQuestionPublished}}

	err := engine.HandleMention(context.Background(), st, imageMention("n4", "bob", "img"))
	require.NoError(t, err)

	require.Len(t, client.posts, 1)
	assert.Contains(t, client.posts[0].Text, messages.NotInPrepare)
}

func TestHandleMention_ImageDuringPrepareLeftUntouched(t *testing.T) {
	client := &mockClient{}
	engine := newTestEngine(client, &mockSynth{})
	st := &State{Festival: &domain.FestivalConfig{State: domain.StatePrepare}}

	err := engine.HandleMention(context.Background(), st, imageMention("n5", "bob", "img"))
	require.NoError(t, err)

	assert.Empty(t, client.posts, "submissions are read later in bulk, not reacted to")
	assert.Equal(t, "n5", st.Cursor)
}

func TestStartFestival_ContentRejectedFallsBackToRequestLink(t *testing.T) {
	client := &mockClient{postErrs: []error{fmt.Errorf("status: %w", domain.ErrContentRejected), nil}}
	engine := newTestEngine(client, &mockSynth{})
	st := &State{}

	err := engine.HandleMention(context.Background(), st, requestMention("n6"))
	require.NoError(t, err)

	require.NotNil(t, st.Festival)
	require.Len(t, client.posts, 2)
	assert.Contains(t, client.posts[1].Text, "https://local.test/@alice/n6",
		"the fallback replaces the description with a link to the request")
	assert.Equal(t, "post-2", st.Festival.PreparePostID)
}

func TestStartFestival_PostFailureDiscardsFestival(t *testing.T) {
	client := &mockClient{postErrs: []error{fmt.Errorf("boom"), nil}}
	engine := newTestEngine(client, &mockSynth{})
	st := &State{}

	err := engine.HandleMention(context.Background(), st, requestMention("n7"))
	require.NoError(t, err)

	assert.Nil(t, st.Festival)
	require.Len(t, client.posts, 2)
	assert.Contains(t, client.posts[1].Text, messages.FestivalFailed)
	assert.Equal(t, domain.VisibilityUnlisted, client.posts[1].Visibility)
}

func prepareFestival(nameRevealOffset time.Duration) *domain.FestivalConfig {
	deadline := time.Date(2024, 3, 1, 14, 30, 0, 0, time.Local)
	return &domain.FestivalConfig{
		AnchorID:        "n1",
		SourceLink:      picrewLink,
		PrepareDeadline: deadline,
		NameRevealAt:    deadline.Add(nameRevealOffset),
		AnswerRevealAt:  deadline.Add(nameRevealOffset + 30*time.Minute),
		State:           domain.StatePrepare,
		PreparePostID:   "prepare-post",
	}
}

func TestPrepareEnd_InsufficientEntriesCancels(t *testing.T) {
	client := &mockClient{replies: map[string][]domain.Mention{
		"prepare-post": {imageMention("r1", "bob", "img1")},
	}}
	engine := newTestEngine(client, &mockSynth{})
	st := &State{Festival: prepareFestival(15 * time.Minute)}

	err := engine.PrepareEnd(context.Background(), st)
	require.NoError(t, err)

	assert.Nil(t, st.Festival, "cancellation returns to no festival running")
	require.Len(t, client.posts, 1)
	post := client.posts[0]
	assert.Equal(t, messages.FestivalCancelled, post.Text)
	assert.Equal(t, "prepare-post", post.InReplyTo)
	assert.Equal(t, domain.VisibilityPublic, post.Visibility)
	assert.Empty(t, client.uploads, "no question image on cancellation")
}

func TestPrepareEnd_PublishesQuestion(t *testing.T) {
	client := &mockClient{replies: map[string][]domain.Mention{
		"prepare-post": {
			imageMention("r1", "bob", "img1"),
			imageMention("r2", "carol", "img2"),
		},
	}}
	synth := &mockSynth{}
	engine := newTestEngine(client, synth)
	st := &State{Festival: prepareFestival(15 * time.Minute)}

	err := engine.PrepareEnd(context.Background(), st)
	require.NoError(t, err)

	require.NotNil(t, st.Festival)
	assert.Equal(t, domain.StateQuestionPublished, st.Festival.State)
	assert.Equal(t, "r2", st.Cursor, "watermark advances to the last processed reply")
	assert.ElementsMatch(t, []string{"bob@local.test", "carol@local.test"}, st.Festival.Entries)

	assert.Len(t, synth.entries, 2)
	assert.Equal(t, []string{"question.png"}, client.uploads)

	require.Len(t, client.posts, 1)
	post := client.posts[0]
	assert.Equal(t, "prepare-post", post.InReplyTo)
	assert.Equal(t, []string{"media-1"}, post.MediaIDs)
	assert.NotContains(t, post.Text, "참가자 목록", "entries stay hidden until the name reveal")
}

func TestPrepareEnd_CoincidingRevealCollapsesStates(t *testing.T) {
	client := &mockClient{replies: map[string][]domain.Mention{
		"prepare-post": {
			imageMention("r1", "bob", "img1"),
			imageMention("r2", "carol", "img2"),
		},
	}}
	engine := newTestEngine(client, &mockSynth{})
	st := &State{Festival: prepareFestival(0)}

	err := engine.PrepareEnd(context.Background(), st)
	require.NoError(t, err)

	require.NotNil(t, st.Festival)
	assert.Equal(t, domain.StateNameRevealed, st.Festival.State, "QUESTION_PUBLISHED is skipped entirely")
	assert.Equal(t, st.Festival.QuestionPostID, st.Festival.EntriesPostID)

	require.Len(t, client.posts, 1)
	assert.Contains(t, client.posts[0].Text, "참가자 목록")
	assert.Contains(t, client.posts[0].Text, "bob@local.test")
}

func TestPrepareEnd_DeduplicatesAndCaps(t *testing.T) {
	replies := []domain.Mention{
		imageMention("r1", "bob", "first"),
		imageMention("r2", "bob", "second"),
		imageMention("r3", "carol", "img"),
	}
	client := &mockClient{replies: map[string][]domain.Mention{"prepare-post": replies}}
	synth := &mockSynth{}
	engine := newTestEngine(client, synth)
	st := &State{Festival: prepareFestival(15 * time.Minute)}

	err := engine.PrepareEnd(context.Background(), st)
	require.NoError(t, err)

	require.Len(t, synth.entries, 2)
	assert.Equal(t, "first", synth.entries[0].Attachment.URL, "a later submission must not overwrite the first")
}

func TestRevealEntries(t *testing.T) {
	client := &mockClient{}
	engine := newTestEngine(client, &mockSynth{})
	cfg := prepareFestival(15 * time.Minute)
	cfg.State = domain.StateQuestionPublished
	cfg.QuestionPostID = "question-post"
	cfg.Entries = []string{"bob@local.test", "carol@local.test"}
	st := &State{Festival: cfg}

	err := engine.RevealEntries(context.Background(), st)
	require.NoError(t, err)

	assert.Equal(t, domain.StateNameRevealed, cfg.State)
	assert.Equal(t, "post-1", cfg.EntriesPostID)

	require.Len(t, client.posts, 1)
	post := client.posts[0]
	assert.Equal(t, "question-post", post.InReplyTo)
	assert.Equal(t, domain.VisibilityUnlisted, post.Visibility)
	assert.Contains(t, post.Text, "- bob@local.test")
	assert.Contains(t, post.Text, "- carol@local.test")
}

func TestRevealAnswer(t *testing.T) {
	client := &mockClient{}
	engine := newTestEngine(client, &mockSynth{})
	cfg := prepareFestival(15 * time.Minute)
	cfg.State = domain.StateNameRevealed
	cfg.EntriesPostID = "entries-post"
	st := &State{Festival: cfg}

	err := engine.RevealAnswer(context.Background(), st)
	require.NoError(t, err)

	assert.Nil(t, st.Festival, "normal completion discards the festival")
	assert.Equal(t, []string{"answer.png"}, client.uploads)

	require.Len(t, client.posts, 1)
	post := client.posts[0]
	assert.Equal(t, "entries-post", post.InReplyTo)
	assert.Equal(t, domain.VisibilityPublic, post.Visibility)
	assert.Equal(t, []string{"media-1"}, post.MediaIDs)
}
