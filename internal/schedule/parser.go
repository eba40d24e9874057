// Package schedule parses the free-text time directives embedded in a
// festival request into a chain of three absolute deadlines.
//
// The grammar is line-anchored, one directive per line:
//
//	마감: <expr>          prepare deadline, relative to the anchor
//	참가자 공개: <expr>    name reveal, relative to the prepare deadline
//	정답 공개: <expr>      answer reveal, relative to the name reveal
//	다중참가               presence-only flag allowing multiple entries
//
// A time expression is either an "immediate" keyword (즉시, 바로), a minute
// offset (N분, 1-2 digits), or a wall-clock HH:MM resolving to its next local
// occurrence. A directive that is absent, or whose expression matches neither
// form, falls back to a default offset applied to the same chained reference.
package schedule

import (
	"strings"
	"time"
)

// Default offsets applied when a directive is absent or unparsable.
const (
	DefaultPrepare      = 30 * time.Minute
	DefaultNameReveal   = 15 * time.Minute
	DefaultAnswerReveal = 30 * time.Minute
)

const (
	prefixPrepare      = "마감:"
	prefixNameReveal   = "참가자 공개:"
	prefixAnswerReveal = "정답 공개:"
	lineAllowMulti     = "다중참가"
)

var immediateWords = []string{"즉시", "바로"}

// Schedule is the resolved festival timetable.
type Schedule struct {
	PrepareDeadline time.Time
	NameRevealAt    time.Time
	AnswerRevealAt  time.Time
	AllowMulti      bool
}

// Parse resolves the directives found in content against the anchor instant.
// Later deadlines chain off earlier ones, so a delayed prepare phase pushes
// the defaulted reveal phases later too.
func Parse(content string, anchor time.Time) Schedule {
	prepareExpr, prepareSet := directive(content, prefixPrepare)
	nameRevealExpr, nameRevealSet := directive(content, prefixNameReveal)
	answerRevealExpr, answerSet := directive(content, prefixAnswerReveal)

	var sched Schedule
	sched.PrepareDeadline = resolve(anchor, prepareExpr, prepareSet, DefaultPrepare)
	sched.NameRevealAt = resolve(sched.PrepareDeadline, nameRevealExpr, nameRevealSet, DefaultNameReveal)
	sched.AnswerRevealAt = resolve(sched.NameRevealAt, answerRevealExpr, answerSet, DefaultAnswerReveal)
	sched.AllowMulti = hasFlagLine(content, lineAllowMulti)
	return sched
}

// StripDirectives removes all directive lines from the plain-text content,
// for use as the sanitized festival description.
func StripDirectives(content string) string {
	lines := strings.Split(content, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isDirectiveLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func isDirectiveLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == lineAllowMulti {
		return true
	}
	for _, prefix := range []string{prefixPrepare, prefixNameReveal, prefixAnswerReveal} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// directive finds the first line starting with the given prefix and returns
// the trimmed expression after it.
func directive(content, prefix string) (expr string, found bool) {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(trimmed, prefix); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

func hasFlagLine(content, flag string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == flag {
			return true
		}
	}
	return false
}

// resolve evaluates one time expression against its reference instant,
// falling back to ref+def when the directive is absent or malformed.
func resolve(ref time.Time, expr string, found bool, def time.Duration) time.Time {
	if !found {
		return ref.Add(def)
	}
	if t, ok := parseExpr(ref, expr); ok {
		return t
	}
	return ref.Add(def)
}

func parseExpr(ref time.Time, expr string) (time.Time, bool) {
	for _, word := range immediateWords {
		if expr == word {
			return ref, true
		}
	}

	if minutes, ok := parseMinutes(expr); ok {
		return ref.Add(time.Duration(minutes) * time.Minute), true
	}

	if hour, minute, ok := parseWallClock(expr); ok {
		return nextWallClock(ref, hour, minute), true
	}

	return time.Time{}, false
}

// parseMinutes matches "N분" with a 1-2 digit N.
func parseMinutes(expr string) (int, bool) {
	digits, ok := strings.CutSuffix(expr, "분")
	if !ok {
		return 0, false
	}
	return parseDigits(digits, 1, 2)
}

// parseWallClock matches "HH:MM" with exactly two digits on each side.
func parseWallClock(expr string) (hour, minute int, ok bool) {
	left, right, found := strings.Cut(expr, ":")
	if !found {
		return 0, 0, false
	}
	hour, ok = parseDigits(left, 2, 2)
	if !ok || hour > 23 {
		return 0, 0, false
	}
	minute, ok = parseDigits(right, 2, 2)
	if !ok || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func parseDigits(s string, minLen, maxLen int) (int, bool) {
	if len(s) < minLen || len(s) > maxLen {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// nextWallClock returns the next occurrence of hour:minute at/after ref in
// ref's location. Sub-minute components of ref are preserved, so a wall-clock
// time equal to ref's own resolves to ref itself, not a day later.
func nextWallClock(ref time.Time, hour, minute int) time.Time {
	t := time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, ref.Second(), ref.Nanosecond(), ref.Location())
	if t.Before(ref) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}
