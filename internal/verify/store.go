// Package verify issues and checks the one-time codes that gate every
// subscriber mutation. Codes are held in memory only: a process restart
// invalidates outstanding codes, which is acceptable because a code is
// valid for ten minutes and the caller simply requests a new one.
package verify

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"foreversister/internal/types"
)

// Action names the subscriber mutation a code authorizes. A code issued
// for one action cannot confirm another.
type Action string

const (
	ActionSubscribe   Action = "subscribe"
	ActionUnsubscribe Action = "unsubscribe"
	ActionUpdate      Action = "update"
)

// Valid reports whether the action is one of the supported values.
func (a Action) Valid() bool {
	switch a {
	case ActionSubscribe, ActionUnsubscribe, ActionUpdate:
		return true
	}
	return false
}

// CodeTTL is how long an issued code stays valid.
const CodeTTL = 10 * time.Minute

type codeKey struct {
	email  string
	action Action
}

type codeEntry struct {
	code    string
	expires time.Time
}

// Store is an in-memory single-use verification code store, safe for
// concurrent use. Issuing a new code for the same (email, action) pair
// replaces the previous one.
type Store struct {
	mu    sync.Mutex
	codes map[codeKey]codeEntry

	now func() time.Time
}

// StoreOption is a functional option for configuring a Store.
type StoreOption func(*Store)

// WithNow overrides the time source, for testing expiry.
func WithNow(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty code store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		codes: make(map[codeKey]codeEntry),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue generates a fresh six-digit code for the (email, action) pair,
// replacing any outstanding code for the same pair.
func (s *Store) Issue(email string, action Action) (string, error) {
	code, err := randomCode()
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate verification code", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[codeKey{email: email, action: action}] = codeEntry{
		code:    code,
		expires: s.now().Add(CodeTTL),
	}
	return code, nil
}

// Consume checks a submitted code against the outstanding one for the
// (email, action) pair. A matching, unexpired code is removed on success;
// a failed attempt leaves the stored code in place.
func (s *Store) Consume(email string, action Action, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := codeKey{email: email, action: action}
	entry, ok := s.codes[key]
	if !ok || entry.code != code {
		return types.NewAppError(types.ErrCodeVerifyCodeInvalid, "verification code is invalid", nil)
	}
	if s.now().After(entry.expires) {
		delete(s.codes, key)
		return types.NewAppError(types.ErrCodeVerifyCodeInvalid, "verification code has expired", nil)
	}

	delete(s.codes, key)
	return nil
}

// randomCode returns a uniformly distributed six-digit decimal code,
// zero-padded.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
