package watchlist

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aman-zulfiqar/spl-token-manager/internal/constants"
	"github.com/aman-zulfiqar/spl-token-manager/internal/tokenengine"
)

var (
	ErrDuplicate = errors.New("token already in watch list")
	ErrNotFound  = errors.New("token not in watch list")
)

// Token is a mint the session keeps an eye on.
type Token struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// List is the session-scoped watch list. It is never persisted.
type List struct {
	mu     sync.RWMutex
	tokens []Token

	onChange []func()
}

func New() *List {
	return &List{}
}

// Add validates and appends a token. Empty name and symbol fall back to
// defaults; a nil decimals means the default of 9.
func (l *List) Add(address, name, symbol string, decimals *int) (Token, error) {
	pk, err := tokenengine.ParseAddress(strings.TrimSpace(address))
	if err != nil {
		return Token{}, fmt.Errorf("invalid token address: %w", err)
	}

	d := constants.DefaultTokenDecimals
	if decimals != nil {
		d = *decimals
	}
	if err := tokenengine.ValidateDecimals(d); err != nil {
		return Token{}, err
	}

	t := Token{
		Address:  pk.String(),
		Name:     strings.TrimSpace(name),
		Symbol:   strings.TrimSpace(symbol),
		Decimals: uint8(d),
	}
	if t.Name == "" {
		t.Name = constants.DefaultTokenName
	}
	if t.Symbol == "" {
		t.Symbol = constants.DefaultTokenSymbol
	}

	l.mu.Lock()
	for _, existing := range l.tokens {
		if existing.Address == t.Address {
			l.mu.Unlock()
			return Token{}, fmt.Errorf("%w: %s", ErrDuplicate, t.Address)
		}
	}
	l.tokens = append(l.tokens, t)
	l.mu.Unlock()

	l.notify()
	return t, nil
}

// Remove drops the token with the given address.
func (l *List) Remove(address string) error {
	l.mu.Lock()
	idx := -1
	for i, t := range l.tokens {
		if t.Address == address {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	l.tokens = append(l.tokens[:idx], l.tokens[idx+1:]...)
	l.mu.Unlock()

	l.notify()
	return nil
}

// Get returns the token with the given address.
func (l *List) Get(address string) (Token, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, t := range l.tokens {
		if t.Address == address {
			return t, true
		}
	}
	return Token{}, false
}

// Tokens returns a copy of the list in insertion order.
func (l *List) Tokens() []Token {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Token, len(l.tokens))
	copy(out, l.tokens)
	return out
}

// OnChange registers fn to run after every add or remove.
func (l *List) OnChange(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

func (l *List) notify() {
	l.mu.RLock()
	fns := make([]func(), len(l.onChange))
	copy(fns, l.onChange)
	l.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}
