// Package idgen generates subscriber session ids backed by nanoid.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Session id prefixes, one per subscriber transport.
const (
	PrefixWebsocket = "ws-"
	PrefixStream    = "sse-"
)

const (
	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	length   = 12
)

// New returns a fresh session id with the given prefix.
func New(prefix string) (string, error) {
	id, err := nanoid.Generate(alphabet, length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// Transport names the subscriber transport encoded in id's prefix, or
// "other" for ids this package did not mint.
func Transport(id string) string {
	switch {
	case strings.HasPrefix(id, PrefixWebsocket):
		return "websocket"
	case strings.HasPrefix(id, PrefixStream):
		return "sse"
	}
	return "other"
}
