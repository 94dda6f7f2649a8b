package delivery

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/nudgekit/pkg/task"
)

// Class is the retry classification of a platform-call failure.
type Class string

const (
	// ClassPermanent means retrying the same request cannot succeed: abort
	// immediately, no further attempts.
	ClassPermanent Class = "permanent"
	// ClassTransient means a later attempt might succeed: rate limits,
	// server errors, network failures, and anything unrecognized.
	ClassTransient Class = "transient"
)

// APIError is a structured platform-API failure. Senders should return it
// from Deliver so the retry policy can classify by code and status.
type APIError struct {
	Channel    task.Channel
	Code       string // platform error code, e.g. "channel_not_found"
	StatusCode int    // HTTP status, 0 if not applicable
	Err        error  // optional underlying error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s api error (code=%s, status=%d)", e.Channel, e.Code, e.StatusCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.Err }

// slackPermanentCodes are chat-API error codes that no retry will fix:
// auth problems, missing targets, and payloads the platform rejects. The
// send and update operations have disjoint code spaces, so one table covers
// both; the update-only codes (cant_update_message, edit_window_closed,
// invalid_ts and friends) simply never arise on a send.
var slackPermanentCodes = map[string]struct{}{
	"invalid_auth":          {},
	"token_revoked":         {},
	"missing_scope":         {},
	"ekm_access_denied":     {},
	"channel_not_found":     {},
	"is_archived":           {},
	"not_in_channel":        {},
	"user_not_found":        {},
	"restricted_action":     {},
	"invalid_payload":       {},
	"invalid_blocks":        {},
	"invalid_blocks_format": {},
	"message_too_long":      {},
	"metadata_too_long":     {},
	"too_many_attachments":  {},
	"message_not_found":     {},
	"thread_not_found":      {},
	"cant_reply_to_message": {},
	"cant_update_message":   {},
	"edit_window_closed":    {},
	"action_prohibited":     {},
	"invalid_ts":            {},
}

func slackPermanentStatus(status int) bool {
	switch status {
	case 400, 403, 404, 413:
		return true
	}
	return false
}

func linePermanentStatus(status int) bool {
	switch status {
	case 400, 401, 403:
		return true
	}
	return false
}

func genericPermanentStatus(status int) bool {
	switch status {
	case 400, 401, 403, 404, 413:
		return true
	}
	return false
}

// Classify maps a delivery error onto the permanent/transient taxonomy.
//
// Only failures positively identified as unretriable are permanent;
// everything else (rate limits, 5xx, network failures, unknown codes) is
// transient, so an unrecognized condition costs retries rather than
// silently discarding a message.
func Classify(err error) Class {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		// Network-level failures and anything unrecognized.
		return ClassTransient
	}

	switch apiErr.Channel {
	case task.ChannelSlack:
		if _, ok := slackPermanentCodes[apiErr.Code]; ok {
			return ClassPermanent
		}
		if slackPermanentStatus(apiErr.StatusCode) {
			return ClassPermanent
		}
	case task.ChannelLine:
		if linePermanentStatus(apiErr.StatusCode) {
			return ClassPermanent
		}
	default:
		if genericPermanentStatus(apiErr.StatusCode) {
			return ClassPermanent
		}
	}
	return ClassTransient
}
