package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"gatehouse/internal/waitlist"
)

// Event types published on the member lifecycle topic.
const (
	EventMemberSnapshot = "member.snapshot"
	EventMemberJoined   = "member.joined"
	EventMemberLeft     = "member.left"
)

// Envelope wraps every lifecycle notification.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type memberPayload struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Verified    bool   `json:"verified"`
}

type snapshotPayload struct {
	Members []memberPayload `json:"members"`
}

type leftPayload struct {
	ID string `json:"id"`
}

// DecodeEnvelope parses a record value into an envelope. The event id is
// required since it keys deduplication.
func DecodeEnvelope(value []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventID == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing event_id")
	}
	if env.EventType == "" {
		return Envelope{}, fmt.Errorf("decode envelope %s: missing event_type", env.EventID)
	}
	return env, nil
}

func (p memberPayload) toStatus() (waitlist.MemberStatus, error) {
	id, err := waitlist.ParseMemberID(p.ID)
	if err != nil {
		return waitlist.MemberStatus{}, err
	}
	return waitlist.MemberStatus{ID: id, DisplayName: p.DisplayName, Verified: p.Verified}, nil
}

// DecodeSnapshot returns the member listing carried by a member.snapshot event.
func DecodeSnapshot(data json.RawMessage) ([]waitlist.MemberStatus, error) {
	var p snapshotPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	members := make([]waitlist.MemberStatus, 0, len(p.Members))
	for _, m := range p.Members {
		status, err := m.toStatus()
		if err != nil {
			return nil, fmt.Errorf("decode snapshot member %q: %w", m.ID, err)
		}
		members = append(members, status)
	}
	return members, nil
}

// DecodeJoined returns the member carried by a member.joined event.
func DecodeJoined(data json.RawMessage) (waitlist.MemberStatus, error) {
	var p memberPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return waitlist.MemberStatus{}, fmt.Errorf("decode joined: %w", err)
	}
	return p.toStatus()
}

// DecodeLeft returns the member id carried by a member.left event.
func DecodeLeft(data json.RawMessage) (waitlist.MemberID, error) {
	var p leftPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, fmt.Errorf("decode left: %w", err)
	}
	return waitlist.ParseMemberID(p.ID)
}
