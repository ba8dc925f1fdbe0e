package audiocache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/satriahrh/voicetutor/domain/repositories"
)

// keyVersion prefixes every digest input. Bump it when the encoding changes.
const keyVersion = "voicetutor-tts-v1"

// KeyLength is the length of a Key in hex characters.
const KeyLength = sha256.Size * 2

// Key identifies one synthesis request. It is the lowercase hex sha256 of the
// normalized text, language and rate, and is safe to use as a file name.
type Key string

// String implements fmt.Stringer
func (k Key) String() string { return string(k) }

// Valid reports whether k has the shape produced by ComputeKey.
func (k Key) Valid() bool {
	if len(k) != KeyLength {
		return false
	}
	for i := 0; i < len(k); i++ {
		c := k[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ComputeKey derives the cache key for a synthesis request. Each field is
// length-prefixed so that no two distinct tuples share a digest input.
func ComputeKey(text, language string, rate repositories.Rate) Key {
	h := sha256.New()
	writeField(h, keyVersion)
	writeField(h, NormalizeText(text))
	writeField(h, NormalizeLanguage(language))
	writeField(h, string(rate))
	return Key(hex.EncodeToString(h.Sum(nil)))
}

// NormalizeText trims surrounding whitespace and applies Unicode NFC so that
// visually identical inputs hash the same.
func NormalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// NormalizeLanguage lowercases and trims a language code.
func NormalizeLanguage(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}

type byteWriter interface {
	Write(p []byte) (int, error)
}

func writeField(w byteWriter, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	_, _ = w.Write(n[:])
	_, _ = w.Write([]byte(s))
}
