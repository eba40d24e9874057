package festival

import "github.com/tribela/picrew-amuse/internal/domain"

// Ledger accumulates, deduplicates and caps participant submissions for one
// festival. Handles are recorded even for imageless replies; only images
// count toward the cap.
type Ledger struct {
	allowMulti bool
	maxImages  int
	seen       map[string]bool
	handles    []string
	entries    []domain.Entry
}

// NewLedger creates a ledger enforcing the given multi-entry policy and
// image cap.
func NewLedger(allowMulti bool, maxImages int) *Ledger {
	return &Ledger{
		allowMulti: allowMulti,
		maxImages:  maxImages,
		seen:       make(map[string]bool),
	}
}

// Add records one submission. When multi-entry is disallowed, a handle's
// first accepted submission wins and later ones are skipped entirely, images
// included. Excess images beyond the cap are truncated. The return value
// reports whether the ledger can still accept more images.
func (l *Ledger) Add(handle string, attachments []domain.Attachment) bool {
	if l.Full() {
		return false
	}

	if !l.allowMulti && l.seen[handle] {
		return true
	}

	if !l.seen[handle] {
		l.seen[handle] = true
		l.handles = append(l.handles, handle)
	}

	if !l.allowMulti && len(attachments) > 1 {
		attachments = attachments[:1]
	}

	for _, att := range attachments {
		if l.Full() {
			break
		}
		l.entries = append(l.entries, domain.Entry{Handle: handle, Attachment: att})
	}

	return !l.Full()
}

// Full reports whether the image cap has been reached.
func (l *Ledger) Full() bool {
	return len(l.entries) >= l.maxImages
}

// Entries returns the accepted (handle, image) pairs in acceptance order.
func (l *Ledger) Entries() []domain.Entry {
	return l.entries
}

// Handles returns the unique participant handles in first-seen order.
func (l *Ledger) Handles() []string {
	return l.handles
}

// UniqueCount is the number of distinct participating handles.
func (l *Ledger) UniqueCount() int {
	return len(l.handles)
}
