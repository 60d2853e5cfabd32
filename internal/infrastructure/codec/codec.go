// Package codec converts documents to and from the blob store's transport
// form: JSON text carried as standard base64.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hilthontt/repochat/internal/domain"
)

// Encode serializes v to JSON and returns it base64 encoded. The encoder
// works on UTF-8 bytes so non-ASCII text needs no escaping step.
func Encode(v any) (string, error) {
	raw, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode reverses Encode into dst. Line breaks inside the base64 text, as
// returned by contents APIs, are ignored.
func Decode(content string, dst any) error {
	raw, err := base64.StdEncoding.DecodeString(stripWhitespace(content))
	if err != nil {
		return fmt.Errorf("invalid base64 payload: %v: %w", err, domain.ErrCorruptDocument)
	}
	return Unmarshal(raw, dst)
}

func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// Keep <, > and & readable in stored documents.
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func Unmarshal(raw []byte, dst any) error {
	if !utf8.Valid(raw) {
		return fmt.Errorf("payload is not valid UTF-8: %w", domain.ErrCorruptDocument)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid JSON payload: %v: %w", err, domain.ErrCorruptDocument)
	}
	return nil
}

func stripWhitespace(s string) string {
	if !strings.ContainsAny(s, "\r\n\t ") {
		return s
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', '\t', ' ':
			return -1
		}
		return r
	}, s)
}
