package channels

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"regexp"
)

// MaxNameLength is the maximum length allowed for a channel or group name.
const MaxNameLength = 100

// channelNameRegex and groupNameRegex mirror BaseChannelLayer's validation
// in the original implementation: ASCII alphanumerics, hyphens, underscores
// and periods, with channel names additionally allowed a "!"-separated
// local part.
var (
	channelNameRegex = regexp.MustCompile(`^[a-zA-Z0-9\-_.]+(![a-zA-Z0-9\-_.]*)?$`)
	groupNameRegex   = regexp.MustCompile(`^[a-zA-Z0-9\-_.]+$`)
)

// ValidChannelName reports whether name is a well-formed channel name. When
// requireClientPrefix is true, name must contain a "!" separator.
func ValidChannelName(name string, requireClientPrefix bool) bool {
	if name == "" || len(name) > MaxNameLength {
		return false
	}
	if !channelNameRegex.MatchString(name) {
		return false
	}
	if requireClientPrefix && !containsBang(name) {
		return false
	}
	return true
}

// RequireValidChannelName validates name and, when forReceive is true,
// additionally rejects names ending in "!" with nothing after it: Receive
// always targets one fully-qualified channel, so a bare "prefix!" with no
// random suffix can never be a valid receive target in this implementation.
func RequireValidChannelName(name string, forReceive bool) error {
	if !ValidChannelName(name, false) {
		return fmt.Errorf("%w: channel name %q", ErrInvalidName, name)
	}
	if forReceive && containsBang(name) && name[len(name)-1] == '!' {
		return fmt.Errorf("%w: specific channel names in receive() must not end at the !", ErrInvalidName)
	}
	return nil
}

// ValidGroupName reports whether name is a well-formed group name.
func ValidGroupName(name string) bool {
	if name == "" || len(name) > MaxNameLength {
		return false
	}
	return groupNameRegex.MatchString(name)
}

// RequireValidGroupName validates name as a group name.
func RequireValidGroupName(name string) error {
	if !ValidGroupName(name) {
		return fmt.Errorf("%w: group name %q", ErrInvalidName, name)
	}
	return nil
}

// NewChannelName returns prefix + a cryptographically random, base64url
// suffix of roughly 12 characters, per spec.md §4.1.
func NewChannelName(prefix string) (string, error) {
	buf := make([]byte, 9) // 9 bytes -> 12 base64url chars, no padding
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("channels: generate random suffix: %w", err)
	}
	suffix := base64.RawURLEncoding.EncodeToString(buf)
	return prefix + suffix, nil
}

// NonLocalName returns the "non-local" part of a channel name: the
// substring after the "!" if present, otherwise the full name (spec.md
// §4.5). NewChannelName puts the random suffix after the "!", so this is
// the part that varies per channel and is used to deterministically shard
// channels and groups across Redis hosts.
func NonLocalName(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == '!' {
			return name[i+1:]
		}
	}
	return name
}

func containsBang(name string) bool {
	for i := 0; i < len(name); i++ {
		if name[i] == '!' {
			return true
		}
	}
	return false
}

// typeNameRegex enforces spec.md §4.8's dispatch-type naming rule: ASCII,
// no leading/trailing dot, "." used only as a separator between segments.
var typeNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)*$`)

// ValidDispatchType reports whether typeName is usable as a message's
// dispatch type.
func ValidDispatchType(typeName string) bool {
	if typeName == "" {
		return false
	}
	return typeNameRegex.MatchString(typeName)
}

// MethodNameForType maps a dotted dispatch type to the Go method name a
// consumer must expose, replacing "." with "_" (e.g. "chat.message" ->
// "chat_message").
func MethodNameForType(typeName string) string {
	b := make([]byte, len(typeName))
	for i := 0; i < len(typeName); i++ {
		if typeName[i] == '.' {
			b[i] = '_'
		} else {
			b[i] = typeName[i]
		}
	}
	return string(b)
}
