// Package token generates the correlation markers embedded in outgoing
// audit emails so the sent copy can be found again.
package token

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Prefix starts every correlation token.
const Prefix = "#audit_token:"

// timestampLayout keeps microseconds so tokens sort by creation time.
const timestampLayout = "20060102150405.000000"

// Generator produces tokens that are unique within one run. The zero value
// is not usable; call NewGenerator.
type Generator struct {
	now func() time.Time
	seq atomic.Uint64
}

// NewGenerator returns a Generator reading the wall clock.
func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// NewGeneratorWithClock returns a Generator reading now. Used by tests to
// freeze time.
func NewGeneratorWithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// New returns a token of the form #audit_token:<clientID>_<timestamp>_<seq>.
// The sequence number makes tokens distinct even when the clock does not
// advance between calls.
func (g *Generator) New(clientID string) string {
	n := g.seq.Add(1)
	ts := g.now().Format(timestampLayout)
	return fmt.Sprintf("%s%s_%s_%04d", Prefix, sanitize(clientID), ts, n)
}

// sanitize reduces clientID to [A-Za-z0-9._-], folding each run of other
// characters into one '-', so the token renders unescaped in HTML and stays
// on one line for the body search.
func sanitize(clientID string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range clientID {
		if !safeRune(r) {
			pendingDash = b.Len() > 0
			continue
		}
		if pendingDash {
			b.WriteByte('-')
			pendingDash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func safeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}
