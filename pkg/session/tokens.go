package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TokenBinding is what a reconnect token resolves to
type TokenBinding struct {
	Token         string
	Code          string
	ParticipantID string
	IssuedAt      time.Time
}

// TokenIndex maps opaque reconnect tokens to (session, participant) pairs
type TokenIndex struct {
	tokens map[string]*TokenBinding
	mu     sync.RWMutex
}

// NewTokenIndex creates an empty index
func NewTokenIndex() *TokenIndex {
	return &TokenIndex{
		tokens: make(map[string]*TokenBinding),
	}
}

// Generate returns a fresh random token. It is not bound until Bind.
func (ti *TokenIndex) Generate() string {
	return uuid.NewString()
}

// Bind associates token with a participant, replacing any previous binding
func (ti *TokenIndex) Bind(token, code, participantID string) {
	ti.mu.Lock()
	ti.tokens[token] = &TokenBinding{
		Token:         token,
		Code:          code,
		ParticipantID: participantID,
		IssuedAt:      time.Now(),
	}
	ti.mu.Unlock()
}

// Lookup resolves a token
func (ti *TokenIndex) Lookup(token string) (TokenBinding, bool) {
	ti.mu.RLock()
	defer ti.mu.RUnlock()

	b, ok := ti.tokens[token]
	if !ok {
		return TokenBinding{}, false
	}
	return *b, true
}

// Revoke removes a token
func (ti *TokenIndex) Revoke(token string) {
	ti.mu.Lock()
	delete(ti.tokens, token)
	ti.mu.Unlock()
}

// RevokeSession removes every token that points into a session
func (ti *TokenIndex) RevokeSession(code string) int {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	n := 0
	for token, b := range ti.tokens {
		if b.Code == code {
			delete(ti.tokens, token)
			n++
		}
	}
	return n
}

// Len returns the number of live tokens
func (ti *TokenIndex) Len() int {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return len(ti.tokens)
}
