// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/itqan-platform/session-service/internal/logging"
	"github.com/nats-io/nats.go"
)

// Common key prefixes
const (
	// Entity prefixes
	KeyPrefixSession      = "session"
	KeyPrefixAttendance   = "attendance"
	KeyPrefixRecording    = "recording"
	KeyPrefixSubscription = "subscription"
	KeyPrefixAcademy      = "academy"
	KeyPrefixEvent        = "event"

	// Index prefixes
	KeyPrefixIndex       = "index"
	KeyPrefixIndexRoom   = "room"
	KeyPrefixIndexEgress = "egress"
	// KeyPrefixIndexPending marks sessions the sweep still has to look at.
	KeyPrefixIndexPending = "pending"
)

// KeyBuilder provides utilities for building consistent NATS KV keys
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a new key builder with an optional prefix
func NewKeyBuilder(prefix string) *KeyBuilder {
	return &KeyBuilder{
		prefix: prefix,
	}
}

// EntityKey builds a key for an entity (e.g., "session/uid-123")
func (kb *KeyBuilder) EntityKey(entityType, id string) string {
	return kb.applyPrefix(entityType+"/"+id, false)
}

// EntityKeyEncoded builds an encoded key for an entity. Use it when id may contain
// characters NATS does not accept in keys.
func (kb *KeyBuilder) EntityKeyEncoded(entityType string, parts ...string) string {
	return kb.applyPrefix(strings.Join(append([]string{entityType}, parts...), "/"), true)
}

// IndexKey builds a key for an index (e.g., "index/room/QS-academy-1-abc")
func (kb *KeyBuilder) IndexKey(indexType, indexValue string) string {
	return kb.applyPrefix(fmt.Sprintf("%s/%s/%s", KeyPrefixIndex, indexType, indexValue), true)
}

// IndexFilter builds the subject filter matching every entry of an index type.
func (kb *KeyBuilder) IndexFilter(indexType string) string {
	return kb.applyPrefix(fmt.Sprintf("%s/%s/*", KeyPrefixIndex, indexType), true)
}

// DecodedPrefix returns the decoded form of the entity keys below entityType/parts,
// suitable for prefix matching against [KeyBuilder.DecodeKey] output.
func (kb *KeyBuilder) DecodedPrefix(entityType string, parts ...string) string {
	key := strings.Join(append([]string{entityType}, parts...), "/")
	if kb.prefix != "" {
		key = kb.prefix + "/" + key
	}
	return "/" + key + "/"
}

// applyPrefix adds the builder's prefix if one is set
func (kb *KeyBuilder) applyPrefix(key string, encode bool) string {
	fullKey := key
	if kb.prefix != "" {
		fullKey = kb.prefix + "/" + key
	}

	if !encode {
		return fullKey
	}
	encodedKey, err := kb.EncodeKey(fullKey)
	if err != nil {
		slog.Error("error encoding key", logging.ErrKey, err, "key", fullKey)
		return fullKey
	}
	return encodedKey
}

// EncodeKey encodes a key for NATS KV store.
// From https://github.com/ripienaar/encodedkv
//
// NATS limitations: https://docs.nats.io/nats-concepts/jetstream/key-value-store#notes
func (kb *KeyBuilder) EncodeKey(key string) (string, error) {
	trimmed := strings.TrimPrefix(key, "/")
	if trimmed == "" {
		return "", nats.ErrInvalidKey
	}

	parts := strings.Split(trimmed, "/")
	res := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == ">" || part == "*" {
			res = append(res, part)
			continue
		}
		res = append(res, base64.RawURLEncoding.EncodeToString([]byte(part)))
	}

	return strings.Join(res, "."), nil
}

// DecodeKey reverses [KeyBuilder.EncodeKey], returning the key with a leading slash.
func (kb *KeyBuilder) DecodeKey(key string) (string, error) {
	if key == "" {
		return "", nats.ErrInvalidKey
	}

	parts := strings.Split(key, ".")
	res := make([]string, 0, len(parts))
	for _, part := range parts {
		k, err := base64.RawURLEncoding.DecodeString(part)
		if err != nil {
			return "", err
		}
		res = append(res, string(k))
	}

	return "/" + strings.Join(res, "/"), nil
}
