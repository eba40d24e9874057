package domain

import (
	"fmt"
	"time"
)

// FestivalState tracks how far an active festival has progressed. The absence
// of a FestivalConfig altogether means no festival is running.
type FestivalState int

const (
	StatePrepare FestivalState = iota
	StateQuestionPublished
	StateNameRevealed
)

var stateNames = map[FestivalState]string{
	StatePrepare:           "PREPARE",
	StateQuestionPublished: "QUESTION_PUBLISHED",
	StateNameRevealed:      "NAME_REVEALED",
}

func (s FestivalState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("FestivalState(%d)", int(s))
}

// MarshalJSON encodes the state by its symbolic name so persisted snapshots
// stay readable and stable across reorderings of the constants.
func (s FestivalState) MarshalJSON() ([]byte, error) {
	name, ok := stateNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown festival state %d", int(s))
	}
	return []byte(`"` + name + `"`), nil
}

func (s *FestivalState) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return fmt.Errorf("festival state must be a string, got %s", raw)
	}
	name := raw[1 : len(raw)-1]
	for state, n := range stateNames {
		if n == name {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown festival state %q", name)
}

// FestivalConfig is the single in-flight festival. At most one instance is
// live process-wide; entry ingestion keys off "the" active festival.
type FestivalConfig struct {
	// AnchorID is the mention that started the festival, used as the lower
	// bound when scanning for replies.
	AnchorID    string `json:"anchor_id"`
	SourceLink  string `json:"source_link"`
	Description string `json:"description,omitempty"`

	PrepareDeadline time.Time `json:"prepare_deadline"`
	NameRevealAt    time.Time `json:"name_reveal_at"`
	AnswerRevealAt  time.Time `json:"answer_reveal_at"`

	AllowMulti bool          `json:"allow_multi"`
	State      FestivalState `json:"state"`

	// Entries holds fully-qualified participant handles, unique, order
	// irrelevant.
	Entries []string `json:"entries"`

	PreparePostID  string `json:"prepare_post_id,omitempty"`
	QuestionPostID string `json:"question_post_id,omitempty"`
	EntriesPostID  string `json:"entries_post_id,omitempty"`
}

// Entry is one accepted (handle, image) pair destined for a collage cell.
type Entry struct {
	Handle     string
	Attachment Attachment
}

// HasEntry reports whether the handle is already recorded.
func (c *FestivalConfig) HasEntry(handle string) bool {
	for _, h := range c.Entries {
		if h == handle {
			return true
		}
	}
	return false
}

// AddEntry records a handle, preserving set semantics. Returns false when the
// handle was already present.
func (c *FestivalConfig) AddEntry(handle string) bool {
	if c.HasEntry(handle) {
		return false
	}
	c.Entries = append(c.Entries, handle)
	return true
}
