package format

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// isoLayout совпадает с toISOString: UTC и миллисекунды
const isoLayout = "2006-01-02T15:04:05.000Z"

// hashFields считает SHA-256 от нормализованных полей, склеенных через "-"
func hashFields(fields ...string) string {
	normalized := make([]string, len(fields))
	for i, f := range fields {
		normalized[i] = norm.NFC.String(strings.TrimSpace(f))
	}

	sum := sha256.Sum256([]byte(strings.Join(normalized, "-")))
	return hex.EncodeToString(sum[:])
}

// ISOTime форматирует момент времени в ISO-8601 (UTC). Нулевое время даёт пустую строку.
func ISOTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(isoLayout)
}

// IdentityKey ключ "того же самого занятия": начало, конец, название
func IdentityKey(start, end time.Time, title string) string {
	return hashFields(ISOTime(start), ISOTime(end), title)
}

// Fingerprint отпечаток видимых полей события
func Fingerprint(title, location, description, colorID string) string {
	return hashFields(title, location, description, colorID)
}
