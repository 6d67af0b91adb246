package core

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	guidAlphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"
	guidLength    = 8
	displayLength = 4
)

// GUID prefixes per table.
const (
	PrefixMessage     = "msg"
	PrefixReaction    = "rxn"
	PrefixChannel     = "ch"
	PrefixParticipant = "usr"
)

// GenerateGUID creates a short GUID with the provided prefix.
func GenerateGUID(prefix string) (string, error) {
	normalized := strings.TrimSuffix(prefix, "-")

	buf := make([]byte, guidLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate guid: %w", err)
	}

	id := make([]byte, guidLength)
	for i := 0; i < guidLength; i++ {
		id[i] = guidAlphabet[int(buf[i])%len(guidAlphabet)]
	}

	return fmt.Sprintf("%s-%s", normalized, string(id)), nil
}

// ShortID returns the display form of a GUID: its prefix stripped and truncated.
func ShortID(guid string) string {
	base := guid
	if idx := strings.IndexByte(base, '-'); idx >= 0 {
		base = base[idx+1:]
	}
	if len(base) > displayLength {
		base = base[:displayLength]
	}
	return base
}
