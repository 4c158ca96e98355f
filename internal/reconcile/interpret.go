package reconcile

import (
	"slices"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/coachpo/metasweep/internal/domain/catalog"
)

const (
	// DefaultNamespace is the metafield namespace the sweep reads and writes.
	DefaultNamespace = "custom"
	// DefaultBadgesKey holds the JSON encoded badge list.
	DefaultBadgesKey = "badges"
	// DefaultExpirationKey holds the expiration date of the sentinel badge.
	DefaultExpirationKey = "expiration_time"
	// BadgesType is the metafield type used when rewriting the badge list.
	BadgesType = "list.single_line_text_field"
)

// Keys names the metafields the sweep interprets.
type Keys struct {
	Namespace  string
	Badges     string
	Expiration string
}

// DefaultKeys returns the stock namespace and key names.
func DefaultKeys() Keys {
	return Keys{
		Namespace:  DefaultNamespace,
		Badges:     DefaultBadgesKey,
		Expiration: DefaultExpirationKey,
	}
}

func (k Keys) withDefaults() Keys {
	def := DefaultKeys()
	if strings.TrimSpace(k.Namespace) == "" {
		k.Namespace = def.Namespace
	}
	if strings.TrimSpace(k.Badges) == "" {
		k.Badges = def.Badges
	}
	if strings.TrimSpace(k.Expiration) == "" {
		k.Expiration = def.Expiration
	}
	return k
}

// DecodeStatus reports how a raw metafield value was turned into a typed value.
type DecodeStatus uint8

const (
	// DecodeAbsent means the entry was missing or blank.
	DecodeAbsent DecodeStatus = iota
	// DecodeParsed means the raw value decoded cleanly.
	DecodeParsed
	// DecodeDefaulted means the raw value was malformed and a safe default was substituted.
	DecodeDefaulted
)

func (s DecodeStatus) String() string {
	switch s {
	case DecodeAbsent:
		return "absent"
	case DecodeParsed:
		return "parsed"
	case DecodeDefaulted:
		return "defaulted"
	default:
		return "unknown"
	}
}

// Tags is an ordered badge list with set lookups.
type Tags []string

// Contains reports whether tag is present.
func (t Tags) Contains(tag string) bool {
	return slices.Contains(t, tag)
}

// Without returns the remaining badges in their original order. The result is never nil so that it
// encodes as an empty JSON list.
func (t Tags) Without(tag string) []string {
	out := make([]string, 0, len(t))
	for _, v := range t {
		if v != tag {
			out = append(out, v)
		}
	}
	return out
}

// DecisionInput is the typed view of a product's metafields.
type DecisionInput struct {
	Tags         Tags
	TagsStatus   DecodeStatus
	ExpiresAt    *time.Time
	ExpiryStatus DecodeStatus
	// ExpirationRaw keeps the untouched expiration value for logging.
	ExpirationRaw string
	// ExpirationEntryID is the id of the expiration entry, empty when the product has none.
	ExpirationEntryID string
}

// Interpret converts a product's metafields into a DecisionInput. Malformed values never fail the
// call; they collapse to an empty tag list or a missing expiration and are flagged as defaulted.
func Interpret(p catalog.Product, keys Keys) DecisionInput {
	keys = keys.withDefaults()
	values := make(map[string]catalog.Metafield, len(p.Metafields))
	for _, mf := range p.Metafields {
		if mf.Namespace != "" && mf.Namespace != keys.Namespace {
			continue
		}
		values[mf.Key] = mf
	}

	var in DecisionInput
	if mf, ok := values[keys.Badges]; ok {
		in.Tags, in.TagsStatus = decodeBadges(mf.Value)
	} else {
		in.Tags = Tags{}
	}
	if mf, ok := values[keys.Expiration]; ok {
		in.ExpirationEntryID = strings.TrimSpace(mf.ID)
		in.ExpirationRaw = mf.Value
		in.ExpiresAt, in.ExpiryStatus = decodeExpiration(mf.Value)
	}
	return in
}

func decodeBadges(raw string) (Tags, DecodeStatus) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Tags{}, DecodeAbsent
	}
	var badges []string
	if err := json.Unmarshal([]byte(trimmed), &badges); err != nil {
		return Tags{}, DecodeDefaulted
	}
	if badges == nil {
		badges = []string{}
	}
	return Tags(badges), DecodeParsed
}

var expirationLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateOnly,
}

func decodeExpiration(raw string) (*time.Time, DecodeStatus) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, DecodeAbsent
	}
	ts, ok := parseExpiration(trimmed)
	if !ok {
		return nil, DecodeDefaulted
	}
	return &ts, DecodeParsed
}

// parseExpiration accepts RFC 3339 date-times and plain dates. Values without a zone are read as UTC.
func parseExpiration(raw string) (time.Time, bool) {
	for _, layout := range expirationLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
