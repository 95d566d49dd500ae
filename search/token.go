package search

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/use-agent/llmbait/models"
)

// TokenLength is the number of symbols in a correlation token.
const TokenLength = 6

const (
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// rejectAbove is the largest multiple of len(tokenAlphabet) that fits in
	// a byte. Bytes at or above it are discarded so every symbol stays
	// equally likely.
	rejectAbove = 256 - 256%len(tokenAlphabet)

	maxTokenAttempts = 32
)

// TokenSource produces correlation tokens. The zero value is not usable;
// call NewTokenSource.
type TokenSource struct {
	rand io.Reader
}

// NewTokenSource returns a TokenSource reading from r, or from crypto/rand
// when r is nil.
func NewTokenSource(r io.Reader) *TokenSource {
	if r == nil {
		r = rand.Reader
	}
	return &TokenSource{rand: r}
}

// Generate returns a fresh TokenLength-symbol token drawn uniformly from
// [A-Z0-9].
func (s *TokenSource) Generate() (string, error) {
	out := make([]byte, 0, TokenLength)
	var b [1]byte
	for len(out) < TokenLength {
		if _, err := io.ReadFull(s.rand, b[:]); err != nil {
			return "", fmt.Errorf("token: read entropy: %w", err)
		}
		if int(b[0]) >= rejectAbove {
			continue
		}
		out = append(out, tokenAlphabet[int(b[0])%len(tokenAlphabet)])
	}
	return string(out), nil
}

// generateUnique returns a token not yet present in m.
func (s *TokenSource) generateUnique(m *TokenMap) (string, error) {
	for range maxTokenAttempts {
		tok, err := s.Generate()
		if err != nil {
			return "", err
		}
		if !m.Contains(tok) {
			return tok, nil
		}
	}
	return "", fmt.Errorf("token: no unique token after %d attempts", maxTokenAttempts)
}

// TokenMap maps correlation tokens to the injected entry they tag. It is
// built once per search and only read afterwards.
type TokenMap struct {
	entries map[string]models.InjectedEntry
	order   []string
}

func newTokenMap(capacity int) TokenMap {
	return TokenMap{
		entries: make(map[string]models.InjectedEntry, capacity),
		order:   make([]string, 0, capacity),
	}
}

func (m *TokenMap) add(token string, entry models.InjectedEntry) {
	if m.entries == nil {
		m.entries = make(map[string]models.InjectedEntry)
	}
	m.entries[token] = entry
	m.order = append(m.order, token)
}

// Lookup returns the entry tagged with token.
func (m TokenMap) Lookup(token string) (models.InjectedEntry, bool) {
	e, ok := m.entries[token]
	return e, ok
}

// Contains reports whether token is a key of the map.
func (m TokenMap) Contains(token string) bool {
	_, ok := m.entries[token]
	return ok
}

// Len returns the number of tokens.
func (m TokenMap) Len() int { return len(m.entries) }

// Tokens returns the tokens in the order they were issued.
func (m TokenMap) Tokens() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}
