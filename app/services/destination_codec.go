// Package services provides external service integrations and technical concerns like content fetching, gate tickets and link encoding
package services

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Destination codec error constants
var (
	ErrInvalidInput = errors.New("invalid destination link")
	ErrDecode       = errors.New("invalid link format")
)

// DestinationCodec converts destination URLs to opaque URL-safe tokens and back.
// It hides the destination from casual inspection only.
type DestinationCodec interface {
	Encode(rawURL string) (string, error)
	Decode(token string) (string, error)
	Normalize(token string) string
}

// DestinationCodecImpl encodes with the URL-safe base64 alphabet and no padding
type DestinationCodecImpl struct{}

// NewDestinationCodec creates a new destination codec
func NewDestinationCodec() DestinationCodec {
	return &DestinationCodecImpl{}
}

// unsafeReplacer maps the standard base64 characters onto the URL-safe ones.
// A form-decoded '+' arrives as a space.
var unsafeReplacer = strings.NewReplacer("+", "-", "/", "_", " ", "-")

// Encode turns an absolute URL into a token
func (c *DestinationCodecImpl) Encode(rawURL string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidInput)
	}
	if !isAbsoluteURL(rawURL) {
		return "", fmt.Errorf("%w: %q is not an absolute url", ErrInvalidInput, rawURL)
	}
	return base64.RawURLEncoding.EncodeToString([]byte(rawURL)), nil
}

// Decode turns a token back into its destination URL. Tokens using '+' and '/'
// in place of '-' and '_', with or without padding, are accepted.
func (c *DestinationCodecImpl) Decode(token string) (string, error) {
	t := unsafeReplacer.Replace(strings.TrimSpace(token))
	if t == "" {
		return "", fmt.Errorf("%w: empty token", ErrDecode)
	}

	enc := base64.RawURLEncoding.Strict()
	if strings.Contains(t, "=") {
		enc = base64.URLEncoding.Strict()
	}

	raw, err := enc.DecodeString(t)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: not valid utf-8", ErrDecode)
	}

	dest := string(raw)
	if !isAbsoluteURL(dest) {
		return "", fmt.Errorf("%w: not an absolute url", ErrDecode)
	}
	return dest, nil
}

// Normalize returns the canonical URL-safe, unpadded form of a token
func (c *DestinationCodecImpl) Normalize(token string) string {
	return strings.TrimRight(unsafeReplacer.Replace(strings.TrimSpace(token)), "=")
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme != ""
}
