// Package messages holds every user-facing text the bot posts. Texts are
// fixed so each rejection and lifecycle path stays recognizable.
package messages

import "strings"

var hashtags = []string{"#픽락관"}

// HashtagLine is appended to the public lifecycle posts.
func HashtagLine() string {
	if len(hashtags) == 0 {
		return ""
	}
	return "\n\n" + strings.Join(hashtags, " ")
}

const (
	AlreadyRunning = "이미 진행중인 픽락관이 있습니다"
	NoRunning      = "진행중인 픽락관이 없습니다"
	NotInPrepare   = "참가신청이 마감되었습니다"

	FestivalCancelled = "참가자가 부족하여 픽락관이 취소되었습니다"
	FestivalFailed    = "픽락관 생성에 실패했습니다"

	NameRevealedAtSameTime = "문제 공개와 동시에"
)

// Answer is the final reveal post body.
func Answer() string {
	return "정답을 공개합니다\n다음에 또 만나요!" + HashtagLine()
}

// Question builds the question post body. When withEntries is non-nil the
// participant listing is folded into the same post (name reveal coincides
// with the question).
func Question(withEntries []string) string {
	msg := "문제를 공개합니다"
	if len(withEntries) > 0 {
		msg += "\n" + Entries(withEntries)
	}
	return msg + HashtagLine()
}

// Entries renders the participant listing, one handle per line.
func Entries(entries []string) string {
	var b strings.Builder
	b.WriteString("참가자 목록:")
	for _, e := range entries {
		b.WriteString("\n- ")
		b.WriteString(e)
	}
	return b.String()
}

// FestivalStarted builds the public announcement post.
func FestivalStarted(requester, picrewLink, prepareEnd, nameRevealAt, answerRevealAt, description string) string {
	var b strings.Builder
	b.WriteString("픽락관이 시작되었습니다\n")
	b.WriteString("참가신청 마감: " + prepareEnd + "\n")
	b.WriteString("참가자 공개: " + nameRevealAt + "\n")
	b.WriteString("정답 공개: " + answerRevealAt + "\n")
	b.WriteString("주최자: " + requester + "\n")
	b.WriteString("피크루 링크: " + picrewLink + "\n")
	if description != "" {
		b.WriteString("\n개최자 메시지:\n" + description + "\n")
	}
	b.WriteString("참가하시려면 이 메시지에 DM으로 이미지를 보내주세요")
	b.WriteString(HashtagLine())
	return b.String()
}
