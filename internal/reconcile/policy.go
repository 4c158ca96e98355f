package reconcile

import (
	"strings"
	"time"
)

// DefaultSentinelTag marks a product as newly added until its expiration passes.
const DefaultSentinelTag = "New In"

// ActionKind classifies an Action.
type ActionKind uint8

const (
	// ActionNone leaves the product untouched.
	ActionNone ActionKind = iota
	// ActionRemoveTag rewrites the badge list without the sentinel.
	ActionRemoveTag
	// ActionDeleteEntry deletes the expired expiration entry.
	ActionDeleteEntry
	// ActionBoth removes the sentinel and deletes the expiration entry.
	ActionBoth
)

func (k ActionKind) String() string {
	switch k {
	case ActionNone:
		return "none"
	case ActionRemoveTag:
		return "remove_tag"
	case ActionDeleteEntry:
		return "delete_entry"
	case ActionBoth:
		return "remove_tag+delete_entry"
	default:
		return "unknown"
	}
}

// Action is the decision for one product. Empty fields mean the corresponding mutation is not needed.
type Action struct {
	RemoveTag     string
	DeleteEntryID string
}

// Kind returns the variant of the action.
func (a Action) Kind() ActionKind {
	switch {
	case a.RemoveTag != "" && a.DeleteEntryID != "":
		return ActionBoth
	case a.RemoveTag != "":
		return ActionRemoveTag
	case a.DeleteEntryID != "":
		return ActionDeleteEntry
	default:
		return ActionNone
	}
}

// IsNone reports whether the product needs no mutation.
func (a Action) IsNone() bool { return a.Kind() == ActionNone }

// Policy decides which mutations an expired product requires.
type Policy struct {
	SentinelTag string
	// PurgeMalformedExpiration also deletes expiration entries whose value does not parse as a date.
	PurgeMalformedExpiration bool
}

func (p Policy) sentinel() string {
	if tag := strings.TrimSpace(p.SentinelTag); tag != "" {
		return tag
	}
	return DefaultSentinelTag
}

// Expired reports whether the input carries an expiration strictly before now.
func (p Policy) Expired(in DecisionInput, now time.Time) bool {
	return in.ExpiresAt != nil && in.ExpiresAt.Before(now)
}

// Decide is pure: the same input, instant and entry id always yield the same action.
func (p Policy) Decide(in DecisionInput, now time.Time, entryID string) Action {
	var action Action
	entryID = strings.TrimSpace(entryID)
	if !p.Expired(in, now) {
		if p.PurgeMalformedExpiration && entryID != "" && in.ExpiryStatus == DecodeDefaulted {
			action.DeleteEntryID = entryID
		}
		return action
	}
	if sentinel := p.sentinel(); in.Tags.Contains(sentinel) {
		action.RemoveTag = sentinel
	}
	if entryID != "" {
		action.DeleteEntryID = entryID
	}
	return action
}
