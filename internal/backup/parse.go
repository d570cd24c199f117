// Package backup exports the entire persisted key space as one portable
// JSON document and restores it, tolerating real-world corruption and
// merging with data already present on the destination.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
)

// Parse errors.
var (
	ErrEmptyBackup = errors.New("backup: empty input")
	ErrUnparseable = errors.New("backup: input is not recoverable JSON")
	ErrNoKeysFound = errors.New("backup: no key/value pairs recognized")
)

// Tier identifies which stage of the parse cascade produced the result.
// Strict is a clean parse; Repaired fixed syntax (trailing commas, stray
// bytes); Extracted is the last-resort lossy pattern scan.
type Tier string

const (
	TierStrict    Tier = "strict"
	TierRepaired  Tier = "repaired"
	TierExtracted Tier = "extracted"
)

// ParseResult is the outcome of the parse cascade: a flat key-to-value
// payload plus which tier produced it and any warnings the lossy tiers
// accumulated.
type ParseResult struct {
	Tier     Tier
	Data     map[string]json.RawMessage
	Warnings []string
}

// Parse runs the three-tier cascade over raw backup bytes:
//
//  1. trim any preamble/trailing garbage around the outermost JSON value,
//  2. strict parse,
//  3. repair pass (comment/trailing-comma normalization via jsonc),
//  4. best-effort key/value extraction by pattern scanning.
//
// Only failure of every tier is an error.
func Parse(input []byte, primaryKey string) (*ParseResult, error) {
	text := strings.TrimSpace(string(input))
	if text == "" {
		return nil, ErrEmptyBackup
	}

	trimmed, trimWarnings := trimToJSON(text)

	// Tier 1: strict.
	var value interface{}
	if err := json.Unmarshal([]byte(trimmed), &value); err == nil {
		data, err := resolveShape(value, primaryKey)
		if err != nil {
			return nil, err
		}
		tier := TierStrict
		if len(trimWarnings) > 0 {
			// Discarded bytes mean the input needed repair even though
			// the remainder parsed cleanly.
			tier = TierRepaired
		}
		return &ParseResult{Tier: tier, Data: data, Warnings: trimWarnings}, nil
	}

	// Tier 2: repaired. jsonc.ToJSON normalizes comments and trailing
	// commas in place; run the trailing-comma strip as well for inputs
	// jsonc leaves alone.
	repaired := stripTrailingCommas(string(jsonc.ToJSON([]byte(trimmed))))
	if err := json.Unmarshal([]byte(repaired), &value); err == nil {
		data, err := resolveShape(value, primaryKey)
		if err != nil {
			return nil, err
		}
		warnings := append(trimWarnings, "repaired malformed JSON syntax")
		return &ParseResult{Tier: TierRepaired, Data: data, Warnings: warnings}, nil
	}

	// Tier 3: extracted. Lossy: whatever key/value pairs are still
	// recognizable are salvaged into a partial object.
	data, extractWarnings := extractPairs(trimmed)
	if len(data) == 0 {
		return nil, ErrUnparseable
	}
	// An intact {data: {...}} envelope inside otherwise-corrupt input
	// still gets unwrapped.
	if raw, ok := data["data"]; ok {
		var inner map[string]interface{}
		if err := json.Unmarshal(raw, &inner); err == nil {
			if flat, err := flatten(inner); err == nil {
				data = flat
			}
		}
	}
	warnings := append(trimWarnings, "recovered partial data via pattern extraction")
	warnings = append(warnings, extractWarnings...)
	return &ParseResult{Tier: TierExtracted, Data: data, Warnings: warnings}, nil
}

// trimToJSON locates the outermost JSON value, discarding preamble before
// the earliest plausible opening and trailing bytes after the balanced
// close.
func trimToJSON(text string) (string, []string) {
	var warnings []string

	start := -1
	// Earliest plausible object opening wins; a top-level array only when
	// its bracket precedes any brace.
	for _, marker := range []string{`{"`, "{\n", "{\r", "{ ", "{"} {
		if idx := strings.Index(text, marker); idx >= 0 && (start < 0 || idx < start) {
			start = idx
		}
	}
	opener := byte('{')
	closer := byte('}')
	if idx := strings.Index(text, "["); idx >= 0 && (start < 0 || idx < start) {
		start = idx
		opener = '['
		closer = ']'
	}
	if start < 0 {
		return text, warnings
	}
	if start > 0 {
		warnings = append(warnings, fmt.Sprintf("discarded %d bytes of preamble", start))
		text = text[start:]
	}

	end := balancedEnd(text, opener, closer)
	if end >= 0 && end+1 < len(text) {
		warnings = append(warnings, fmt.Sprintf("discarded %d trailing bytes", len(text)-end-1))
		text = text[:end+1]
	}
	return text, warnings
}

// balancedEnd returns the index of the bracket closing the value opened at
// position 0, or -1 if the input ends before it balances. String contents
// and escapes are skipped.
func balancedEnd(text string, opener, closer byte) int {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

var trailingCommaRE = regexp.MustCompile(`,\s*([}\]])`)

// stripTrailingCommas removes commas immediately preceding a closing brace
// or bracket. Commas inside strings survive because the only strings a
// backup holds are values the earlier tiers already failed on wholesale;
// this is a repair heuristic, not a parser.
func stripTrailingCommas(text string) string {
	return trailingCommaRE.ReplaceAllString(text, "$1")
}

// Patterns for the extraction tier: a quoted key followed by a scalar
// value. Composite values (objects, arrays) are matched separately by
// balanced scanning from the opening bracket.
var (
	scalarPairRE = regexp.MustCompile(`"((?:[^"\\]|\\.)+)"\s*:\s*("(?:[^"\\]|\\.)*"|-?\d+(?:\.\d+)?|true|false|null)`)
	openPairRE   = regexp.MustCompile(`"((?:[^"\\]|\\.)+)"\s*:\s*([{\[])`)
)

// extractPairs is the last-resort tier: it scans for recognizable
// "key": value pairs and assembles a partial object out of whatever
// validates. Top-level keys whose composite values are themselves corrupt
// are dropped with a warning.
func extractPairs(text string) (map[string]json.RawMessage, []string) {
	data := make(map[string]json.RawMessage)
	var warnings []string

	coveredUntil := -1
	var captured [][2]int
	for _, m := range openPairRE.FindAllStringSubmatchIndex(text, -1) {
		if m[0] < coveredUntil {
			// Nested inside a composite value already captured whole.
			continue
		}
		key := text[m[2]:m[3]]
		openAt := m[4]
		opener := text[openAt]
		closer := byte('}')
		if opener == '[' {
			closer = ']'
		}
		end := balancedEnd(text[openAt:], opener, closer)
		if end < 0 {
			warnings = append(warnings, fmt.Sprintf("dropped truncated value for key %q", key))
			continue
		}
		candidate := text[openAt : openAt+end+1]
		if !json.Valid([]byte(candidate)) {
			repaired := stripTrailingCommas(string(jsonc.ToJSON([]byte(candidate))))
			if !json.Valid([]byte(repaired)) {
				warnings = append(warnings, fmt.Sprintf("dropped corrupt value for key %q", key))
				continue
			}
			candidate = repaired
		}
		if _, seen := data[key]; !seen {
			data[key] = json.RawMessage(candidate)
		}
		coveredUntil = openAt + end + 1
		captured = append(captured, [2]int{m[0], coveredUntil})
	}

	for _, m := range scalarPairRE.FindAllStringSubmatchIndex(text, -1) {
		if insideAny(captured, m[0]) {
			continue
		}
		key := text[m[2]:m[3]]
		value := text[m[4]:m[5]]
		if _, seen := data[key]; seen {
			continue
		}
		if json.Valid([]byte(value)) {
			data[key] = json.RawMessage(value)
		}
	}

	return data, warnings
}

func insideAny(ranges [][2]int, pos int) bool {
	for _, r := range ranges {
		if pos >= r[0] && pos < r[1] {
			return true
		}
	}
	return false
}

// resolveShape turns a parsed top-level value into the flat key-to-value
// payload: an {data: {...}} envelope is unwrapped, a flat object is used as
// is, and a bare array is treated as a legacy device list stored under the
// primary document key.
func resolveShape(value interface{}, primaryKey string) (map[string]json.RawMessage, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		if inner, ok := v["data"].(map[string]interface{}); ok {
			return flatten(inner)
		}
		return flatten(v)
	case []interface{}:
		document := map[string]interface{}{
			"devices":        v,
			"users":          []interface{}{},
			"logs":           map[string]interface{}{},
			"globalSettings": map[string]interface{}{},
		}
		raw, err := json.Marshal(document)
		if err != nil {
			return nil, fmt.Errorf("wrap legacy device list: %w", err)
		}
		return map[string]json.RawMessage{primaryKey: raw}, nil
	default:
		return nil, ErrNoKeysFound
	}
}

func flatten(m map[string]interface{}) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(m))
	for key, value := range m {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode value for key %q: %w", key, err)
		}
		out[key] = raw
	}
	if len(out) == 0 {
		return nil, ErrNoKeysFound
	}
	return out, nil
}
