// Package qr decodes the heterogeneous QR payloads printed on garden
// signage into a garden code.  Parsing is pure and deterministic: no
// I/O, no lookups.  A payload that decodes successfully may still name
// a garden that does not exist; that is a repository concern and is
// reported by the lookup path, never by this package.
package qr

import (
	"encoding/json"
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// Scheme is the custom URI scheme used on newer signage:
// "pawpals:garden:<code>".
const Scheme = "pawpals"

// ErrUnrecognizedPayload is returned when the scanned text matches none
// of the known formats.  Callers should prompt for a rescan or manual
// entry; this error is distinct from a well-formed code that fails the
// garden lookup.
var ErrUnrecognizedPayload = errors.New("qr: unrecognized payload")

// Format identifies which wire format a payload was decoded from.
type Format string

const (
	FormatJSON   Format = "json"
	FormatURL    Format = "url"
	FormatScheme Format = "scheme"
	FormatBare   Format = "bare"
)

// Payload is the decoded result of a scan.  GardenName is only present
// for the JSON format, which embeds it for offline display.
type Payload struct {
	GardenCode string
	GardenName string
	Source     Format
}

// codePattern matches a garden code: 24 hex characters, the format
// assigned by the garden registry.  Matching is done on the lowercased
// candidate so signage printed in uppercase still scans.
var codePattern = regexp.MustCompile(`^[0-9a-f]{24}$`)

// jsonPayload mirrors the JSON object embedded in first-generation
// signage.
type jsonPayload struct {
	GardenID   string `json:"gardenId"`
	GardenName string `json:"gardenName"`
	Type       string `json:"type"`
}

// Parse decodes raw QR text.  The formats are attempted in order: JSON
// object with a gardenId field, URL whose final path segment is a
// code, the pawpals:garden:<code> scheme, and finally a bare code.
// The first successful interpretation wins.
func Parse(raw string) (Payload, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Payload{}, ErrUnrecognizedPayload
	}

	if strings.HasPrefix(s, "{") {
		var jp jsonPayload
		if err := json.Unmarshal([]byte(s), &jp); err == nil {
			if code, ok := normalizeCode(jp.GardenID); ok {
				return Payload{GardenCode: code, GardenName: jp.GardenName, Source: FormatJSON}, nil
			}
		}
		// Looked like JSON but carried no usable gardenId; other
		// formats cannot start with '{' so stop here.
		return Payload{}, ErrUnrecognizedPayload
	}

	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
			segs := strings.Split(strings.Trim(u.Path, "/"), "/")
			if last := segs[len(segs)-1]; last != "" {
				if code, ok := normalizeCode(last); ok {
					return Payload{GardenCode: code, Source: FormatURL}, nil
				}
			}
		}
		return Payload{}, ErrUnrecognizedPayload
	}

	if rest, ok := strings.CutPrefix(s, Scheme+":garden:"); ok {
		if code, ok := normalizeCode(rest); ok {
			return Payload{GardenCode: code, Source: FormatScheme}, nil
		}
		return Payload{}, ErrUnrecognizedPayload
	}

	if code, ok := normalizeCode(s); ok {
		return Payload{GardenCode: code, Source: FormatBare}, nil
	}
	return Payload{}, ErrUnrecognizedPayload
}

// normalizeCode lowercases and validates a candidate garden code.
func normalizeCode(s string) (string, bool) {
	c := strings.ToLower(strings.TrimSpace(s))
	if !codePattern.MatchString(c) {
		return "", false
	}
	return c, true
}
