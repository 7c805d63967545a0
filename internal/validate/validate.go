// internal/validate/validate.go

// Package validate holds the pure input gate: one check per inbound event
// class, each returning either a normalized value or a reject reason. Nothing
// here touches shared state; validation always runs before any side effect.
package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	CodeLength  = 5
	NameMinLen  = 2
	NameMaxLen  = 30
	BidCeiling  = 10000
	MaxRoster   = 25
	MaxChatLen  = 240
	MaxWickets  = 11
	markupChars = "<>{}`"
)

// RejectError reports why an input was refused. It is the only error type
// validation produces.
type RejectError struct {
	Field  string
	Reason string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func reject(field, reason string) error {
	return &RejectError{Field: field, Reason: reason}
}

// RoomCode normalizes a 5-character room code to upper case. Codes are
// case-insensitive on the wire but stored upper.
func RoomCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != CodeLength {
		return "", reject("room_code", fmt.Sprintf("must be exactly %d characters", CodeLength))
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", reject("room_code", "must be alphanumeric")
		}
	}
	return code, nil
}

// PlayerName trims and checks a display name: 2-30 characters, no
// markup-like characters. Bounds count characters, not bytes, so accented
// names are measured the way a player reads them.
func PlayerName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if n := utf8.RuneCountInString(name); n < NameMinLen || n > NameMaxLen {
		return "", reject("name", fmt.Sprintf("must be %d-%d characters", NameMinLen, NameMaxLen))
	}
	if strings.ContainsAny(name, markupChars) {
		return "", reject("name", "contains disallowed characters")
	}
	return name, nil
}

// GameMode accepts one of the three supported room modes.
func GameMode(raw string) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(raw))
	switch mode {
	case "head_to_head", "tournament", "auction":
		return mode, nil
	}
	return "", reject("mode", "unknown game mode")
}

// BidAmount checks a bid is a non-negative whole number under the hard
// ceiling. Fractional inputs never reach here: the payload field is an
// integer and decode fails first.
func BidAmount(amount int) (int, error) {
	if amount < 0 {
		return 0, reject("amount", "must not be negative")
	}
	if amount > BidCeiling {
		return 0, reject("amount", fmt.Sprintf("exceeds ceiling of %d", BidCeiling))
	}
	return amount, nil
}

// RosterEntry is one slot of a team-roster payload.
type RosterEntry struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// Roster checks a team-roster payload: bounded size, every entry named.
func Roster(entries []RosterEntry) ([]RosterEntry, error) {
	if len(entries) > MaxRoster {
		return nil, reject("roster", fmt.Sprintf("at most %d entries", MaxRoster))
	}
	out := make([]RosterEntry, 0, len(entries))
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, reject("roster", fmt.Sprintf("entry %d has no name", i))
		}
		out = append(out, RosterEntry{Name: name, Role: strings.TrimSpace(e.Role)})
	}
	return out, nil
}

// Snapshot checks the four understood fields of a match-state payload. The
// rest of the payload is opaque and passes through untouched.
func Snapshot(score, wickets, balls, innings int) error {
	if score < 0 {
		return reject("score", "must not be negative")
	}
	if wickets < 0 || wickets > MaxWickets {
		return reject("wickets", fmt.Sprintf("must be 0-%d", MaxWickets))
	}
	if balls < 0 {
		return reject("balls_bowled", "must not be negative")
	}
	if innings < 0 {
		return reject("innings", "must not be negative")
	}
	return nil
}

// ChatMessage trims and bounds a chat line.
func ChatMessage(raw string) (string, error) {
	msg := strings.TrimSpace(raw)
	if msg == "" {
		return "", reject("message", "empty message")
	}
	if utf8.RuneCountInString(msg) > MaxChatLen {
		return "", reject("message", fmt.Sprintf("longer than %d characters", MaxChatLen))
	}
	return msg, nil
}
