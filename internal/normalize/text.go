package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

var remoteKeywords = []string{"remote", "work from home", "wfh", "telecommute", "anywhere"}

// IsRemote reports whether any field mentions a remote keyword.
func IsRemote(fields ...string) bool {
	for _, f := range fields {
		lower := strings.ToLower(f)
		for _, kw := range remoteKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// Field lower-cases s, drops everything but letters, digits and spaces,
// and collapses whitespace.
func Field(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Key is the normalized identity of a posting.
func Key(title, company, location string) string {
	return Field(title) + "|" + Field(company) + "|" + Field(location)
}

// Hash is the hex SHA-256 of Key.
func Hash(title, company, location string) string {
	sum := sha256.Sum256([]byte(Key(title, company, location)))
	return hex.EncodeToString(sum[:])
}

// StripHTML returns the visible text of an HTML fragment with whitespace collapsed.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
