package domain

import "errors"

var (
	// ErrContentRejected marks a post the platform refused for content
	// reasons (typically a too-long status). Recovered locally with one
	// fallback retry during festival start; everything else treats it
	// like any other post failure.
	ErrContentRejected = errors.New("post content rejected by platform")

	// ErrMediaNotReady marks a media upload that never finished platform-side
	// processing within the bounded wait.
	ErrMediaNotReady = errors.New("media processing did not finish in time")
)
