package reminder

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cast"
)

// Global reminder statuses.
const (
	StatusPending  = "pending"
	StatusResolved = "resolved"
	StatusError    = "error"
)

// Per-channel statuses.
const (
	ChannelStatusInitial      = "initial"
	ChannelStatusSent         = "sent"
	ChannelStatusFollowupSent = "followup_sent"
	ChannelStatusResolved     = "resolved"
	ChannelStatusError        = "error"
)

// ChannelState tracks a reminder's progress within a single delivery channel.
// It lives inside the Reminder's channels map and is persisted as part of one
// JSON-serialized hash field.
type ChannelState struct {
	Status           string            `json:"status"`
	PlatformData     map[string]string `json:"platform_data,omitempty"`
	NextFollowupTime *float64          `json:"next_followup_time,omitempty"`
	LastError        string            `json:"last_error,omitempty"`
	ErrorCount       int               `json:"error_count"`
	LastReminderTime *float64          `json:"last_reminder_time,omitempty"`
}

// Validate checks the channel-level invariants.
func (s *ChannelState) Validate() error {
	if s.ErrorCount < 0 {
		return ErrNegativeErrorCount
	}
	return nil
}

// Reminder is the full record of one escalating notification: its identity
// and content, the follow-up policy, the lifecycle state, and the per-channel
// sub-states. It is persisted as a flat text hash keyed by
// "reminder:state:{NotificationID}" and never deleted; resolved and errored
// records stay behind as an audit trail.
//
// Timestamps are Unix seconds with a fractional part, matching the schedule
// index score format.
type Reminder struct {
	NotificationID string
	TemplateName   string
	Recipient      string
	MainText       string
	SubText        string
	ActionText     string

	// TimeoutSeconds is the escalation interval: how long to wait after each
	// nudge before the reminder becomes due again.
	TimeoutSeconds int
	// MaxAttempts bounds the number of follow-ups. Nil means unbounded.
	MaxAttempts *int
	// InitialSettings carries caller-supplied fields preserved verbatim for
	// follow-up builders.
	InitialSettings map[string]string

	GlobalStatus      string
	FollowupAttempts  int
	CreatedAt         float64
	LastUpdated       float64
	ResolvedAt        *float64
	ResolvedByChannel string

	Channels map[string]ChannelState
}

// Active reports whether the reminder is still eligible for follow-ups.
func (r *Reminder) Active() bool {
	return r.GlobalStatus == StatusPending
}

// Validate checks the record-level invariants and every channel sub-state.
func (r *Reminder) Validate() error {
	switch {
	case r.NotificationID == "":
		return fmt.Errorf("%w: notification_id", ErrMissingField)
	case r.TemplateName == "":
		return fmt.Errorf("%w: template_name", ErrMissingField)
	case r.Recipient == "":
		return fmt.Errorf("%w: recipient", ErrMissingField)
	case r.MainText == "":
		return fmt.Errorf("%w: main_text", ErrMissingField)
	case r.TimeoutSeconds <= 0:
		return ErrInvalidTimeout
	case r.MaxAttempts != nil && *r.MaxAttempts <= 0:
		return ErrInvalidMaxAttempts
	case r.FollowupAttempts < 0:
		return ErrNegativeAttempts
	}
	for name, ch := range r.Channels {
		if err := ch.Validate(); err != nil {
			return fmt.Errorf("channel %q: %w", name, err)
		}
	}
	return nil
}

// Hash field names of the persisted record.
const (
	fieldNotificationID    = "notification_id"
	fieldTemplateName      = "template_name"
	fieldRecipient         = "recipient"
	fieldMainText          = "main_text"
	fieldSubText           = "sub_text"
	fieldActionText        = "action_text"
	fieldTimeoutSeconds    = "timeout_seconds"
	fieldMaxAttempts       = "max_attempts"
	fieldInitialSettings   = "initial_settings"
	fieldGlobalStatus      = "global_status"
	fieldFollowupAttempts  = "followup_attempts"
	fieldCreatedAt         = "created_at"
	fieldLastUpdated       = "last_updated"
	fieldResolvedAt        = "resolved_at"
	fieldResolvedByChannel = "resolved_by_channel"
	fieldChannels          = "channels"
)

// toHash flattens the record to the all-text field map the store writes.
// Absent optional values produce no field at all. The channels map always
// serializes, so an empty map round-trips as "{}" rather than vanishing.
func (r *Reminder) toHash() (map[string]string, error) {
	channels := r.Channels
	if channels == nil {
		channels = map[string]ChannelState{}
	}
	channelsJSON, err := json.Marshal(channels)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize channels for %s: %w", r.NotificationID, err)
	}

	fields := map[string]string{
		fieldNotificationID:   r.NotificationID,
		fieldTemplateName:     r.TemplateName,
		fieldRecipient:        r.Recipient,
		fieldMainText:         r.MainText,
		fieldTimeoutSeconds:   strconv.Itoa(r.TimeoutSeconds),
		fieldGlobalStatus:     r.GlobalStatus,
		fieldFollowupAttempts: strconv.Itoa(r.FollowupAttempts),
		fieldCreatedAt:        formatTimestamp(r.CreatedAt),
		fieldLastUpdated:      formatTimestamp(r.LastUpdated),
		fieldChannels:         string(channelsJSON),
	}
	if r.SubText != "" {
		fields[fieldSubText] = r.SubText
	}
	if r.ActionText != "" {
		fields[fieldActionText] = r.ActionText
	}
	if r.MaxAttempts != nil {
		fields[fieldMaxAttempts] = strconv.Itoa(*r.MaxAttempts)
	}
	if len(r.InitialSettings) > 0 {
		settingsJSON, err := json.Marshal(r.InitialSettings)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize initial settings for %s: %w", r.NotificationID, err)
		}
		fields[fieldInitialSettings] = string(settingsJSON)
	}
	if r.ResolvedAt != nil {
		fields[fieldResolvedAt] = formatTimestamp(*r.ResolvedAt)
	}
	if r.ResolvedByChannel != "" {
		fields[fieldResolvedByChannel] = r.ResolvedByChannel
	}
	return fields, nil
}

// fromHash parses a raw text field map back into a validated record. Numeric
// fields may arrive as text of either integer or float shape; empty or
// missing values parse to absent, never to zero.
func fromHash(fields map[string]string) (*Reminder, error) {
	r := &Reminder{
		NotificationID:    fields[fieldNotificationID],
		TemplateName:      fields[fieldTemplateName],
		Recipient:         fields[fieldRecipient],
		MainText:          fields[fieldMainText],
		SubText:           fields[fieldSubText],
		ActionText:        fields[fieldActionText],
		GlobalStatus:      fields[fieldGlobalStatus],
		ResolvedByChannel: fields[fieldResolvedByChannel],
		Channels:          map[string]ChannelState{},
	}

	timeout, err := parseInt(fields[fieldTimeoutSeconds])
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fieldTimeoutSeconds, err)
	}
	if timeout != nil {
		r.TimeoutSeconds = *timeout
	}

	r.MaxAttempts, err = parseInt(fields[fieldMaxAttempts])
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fieldMaxAttempts, err)
	}

	attempts, err := parseInt(fields[fieldFollowupAttempts])
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fieldFollowupAttempts, err)
	}
	if attempts != nil {
		r.FollowupAttempts = *attempts
	}

	createdAt, err := parseTimestamp(fields[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fieldCreatedAt, err)
	}
	if createdAt != nil {
		r.CreatedAt = *createdAt
	}

	lastUpdated, err := parseTimestamp(fields[fieldLastUpdated])
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fieldLastUpdated, err)
	}
	if lastUpdated != nil {
		r.LastUpdated = *lastUpdated
	}

	r.ResolvedAt, err = parseTimestamp(fields[fieldResolvedAt])
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fieldResolvedAt, err)
	}

	if raw := fields[fieldInitialSettings]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &r.InitialSettings); err != nil {
			return nil, fmt.Errorf("field %s: %w", fieldInitialSettings, errors.Join(ErrMalformedRecord, err))
		}
	}
	if raw := fields[fieldChannels]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &r.Channels); err != nil {
			return nil, fmt.Errorf("field %s: %w", fieldChannels, errors.Join(ErrMalformedRecord, err))
		}
	}
	if r.Channels == nil {
		r.Channels = map[string]ChannelState{}
	}

	if err := r.Validate(); err != nil {
		return nil, errors.Join(ErrMalformedRecord, err)
	}
	return r, nil
}

// parseInt coerces a text field to an integer. Empty means absent.
func parseInt(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	// Accept float-shaped text for whole numbers; Redis clients and older
	// writers are not consistent about integer formatting.
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return nil, errors.Join(ErrMalformedRecord, err)
	}
	if f != float64(int(f)) {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrMalformedRecord, raw)
	}
	v := int(f)
	return &v, nil
}

// parseTimestamp coerces a text field to Unix seconds. Empty means absent.
func parseTimestamp(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return nil, errors.Join(ErrMalformedRecord, err)
	}
	return &f, nil
}

func formatTimestamp(ts float64) string {
	return strconv.FormatFloat(ts, 'f', -1, 64)
}

// Timestamp converts a wall-clock instant to the stored Unix-seconds form.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
