// Package identity derives stable identity keys and content hashes
// (spec.md §2 C3). Grounded on middleware.Fingerprint's
// sha256-over-joined-fields idiom from the teacher gateway.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// Key derives the stable ledger-scope identity for a user: "id:<id>|email:<email>"
// when both are present, otherwise "email:<email>" or "id:<id>". The email
// is trimmed and lowercased, the user id trimmed.
func Key(userID, email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	userID = strings.TrimSpace(userID)
	switch {
	case email != "" && userID != "":
		return "id:" + userID + "|email:" + email
	case email != "":
		return "email:" + email
	default:
		return "id:" + userID
	}
}

// StableJSON marshals v with map keys sorted, so repeated calls on
// semantically-identical values produce byte-identical output — the
// precondition for content hashing to be deterministic.
func StableJSON(v interface{}) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}

// normalize round-trips v through JSON so map[string]interface{} keys can
// be emitted in sorted order regardless of the original field order.
func normalize(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return sortedCopy(generic), nil
}

func sortedCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(sortedMap, 0, len(keys))
		for _, k := range keys {
			out = append(out, sortedEntry{key: k, value: sortedCopy(t[k])})
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = sortedCopy(item)
		}
		return out
	default:
		return t
	}
}

// sortedMap marshals as a JSON object with keys in the order inserted
// (sorted by sortedCopy above) — encoding/json preserves slice order.
type sortedMap []sortedEntry

type sortedEntry struct {
	key   string
	value interface{}
}

func (m sortedMap) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			b.WriteByte(',')
		}
		keyJSON, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		valJSON, err := json.Marshal(e.value)
		if err != nil {
			return nil, err
		}
		b.Write(keyJSON)
		b.WriteByte(':')
		b.Write(valJSON)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// ContentHash returns the hex-encoded SHA-256 of v's stable JSON encoding.
func ContentHash(v interface{}) string {
	raw, err := StableJSON(v)
	if err != nil {
		// Malformed input to a content hash is a programming error, not a
		// guard denial; fall back to hashing the error text so the
		// function stays total without panicking mid-pipeline.
		raw = []byte(err.Error())
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// RequestHash hashes the fields that determine provider-request identity:
// action id, action type, and payload (spec.md §3 EvidenceRef).
func RequestHash(actionID, actionType string, payload map[string]interface{}) string {
	return ContentHash(map[string]interface{}{
		"action_id":   actionID,
		"action_type": actionType,
		"payload":     payload,
	})
}
