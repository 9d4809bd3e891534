// Package ledger is the authoritative in-memory store of bank accounts.
//
// Every account has its own mutex, so operations on unrelated accounts never
// contend. The map itself is guarded by a separate RWMutex that is held only
// long enough to find or insert an entry; accounts are never removed, so an
// entry pointer stays valid after the map lock is released.
package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"github.com/dmitrijs2005/gophbank/internal/cryptox"
	"github.com/shopspring/decimal"
)

type Ledger struct {
	mu        sync.RWMutex
	accounts  map[string]*entry
	hasher    cryptox.Hasher
	hashSlots int
}

// DefaultHashConcurrency is how many password hashes run at once unless
// WithHashConcurrency says otherwise.
const DefaultHashConcurrency = 4

type Option func(*Ledger)

// WithHasher replaces the default argon2id hasher.
func WithHasher(h cryptox.Hasher) Option {
	return func(l *Ledger) { l.hasher = h }
}

// WithHashConcurrency bounds the password hashes computed at once by
// Create, Verify and ChangePassword.
func WithHashConcurrency(n int) Option {
	return func(l *Ledger) { l.hashSlots = n }
}

// New returns an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		accounts:  make(map[string]*entry),
		hasher:    cryptox.NewArgon2Hasher(cryptox.DefaultParams),
		hashSlots: DefaultHashConcurrency,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.hasher = cryptox.NewLimitedHasher(l.hasher, int64(l.hashSlots))
	return l
}

// Restore builds a ledger from previously saved accounts. Records are taken
// verbatim; a later record with the same username replaces an earlier one.
func Restore(accounts []Account, opts ...Option) *Ledger {
	l := New(opts...)
	for _, a := range accounts {
		e := &entry{}
		e.acc = a
		e.acc.Salt = append([]byte(nil), a.Salt...)
		e.acc.Hash = append([]byte(nil), a.Hash...)
		l.accounts[a.Username] = e
	}
	return l
}

func (l *Ledger) lookup(username string) (*entry, error) {
	l.mu.RLock()
	e, ok := l.accounts[username]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrorNotFound, username)
	}
	return e, nil
}

// Len reports the number of accounts.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.accounts)
}

// Create registers a new account with a zero balance.
func (l *Ledger) Create(username, password string) (Account, error) {
	if err := validateUsername(username); err != nil {
		return Account{}, err
	}
	if err := validatePassword(password); err != nil {
		return Account{}, err
	}

	// fail fast before paying for the hash
	l.mu.RLock()
	_, exists := l.accounts[username]
	l.mu.RUnlock()
	if exists {
		return Account{}, fmt.Errorf("%w: %s", common.ErrUsernameTaken, username)
	}

	salt := cryptox.NewSalt()
	e := &entry{acc: Account{
		Username: username,
		Salt:     salt,
		Hash:     l.hasher.Hash([]byte(password), salt),
		Balance:  decimal.Zero,
	}}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.accounts[username]; exists {
		return Account{}, fmt.Errorf("%w: %s", common.ErrUsernameTaken, username)
	}
	l.accounts[username] = e
	return e.copyLocked(), nil
}

// Verify reports whether password matches the stored hash. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (l *Ledger) Verify(username, password string) bool {
	e, err := l.lookup(username)
	if err != nil {
		return false
	}
	e.mu.Lock()
	salt, hash := e.acc.Salt, e.acc.Hash
	e.mu.Unlock()
	return cryptox.Verify(l.hasher, []byte(password), salt, hash)
}

// Balance returns the current balance.
func (l *Ledger) Balance(username string) (decimal.Decimal, error) {
	e, err := l.lookup(username)
	if err != nil {
		return decimal.Zero, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acc.Balance, nil
}

// Deposit adds amount and returns the new balance. A deposit that would
// take the balance past MaxBalance is rejected.
func (l *Ledger) Deposit(username string, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	e, err := l.lookup(username)
	if err != nil {
		return decimal.Zero, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.acc.Balance.Add(amount)
	if next.GreaterThan(MaxBalance) {
		return e.acc.Balance, fmt.Errorf("%w: balance must not exceed %s", common.ErrValidation, MaxBalance.StringFixed(AmountPlaces))
	}
	e.acc.Balance = next
	return e.acc.Balance, nil
}

// Withdraw subtracts amount and returns the new balance. The funds check and
// the decrement happen under the same lock.
func (l *Ledger) Withdraw(username string, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	e, err := l.lookup(username)
	if err != nil {
		return decimal.Zero, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.acc.Balance.LessThan(amount) {
		return e.acc.Balance, fmt.Errorf("%w: balance %s, requested %s",
			common.ErrInsufficientFunds, e.acc.Balance.StringFixed(AmountPlaces), amount.StringFixed(AmountPlaces))
	}
	e.acc.Balance = e.acc.Balance.Sub(amount)
	return e.acc.Balance, nil
}

// ChangePassword re-verifies oldPassword and stores a hash of newPassword
// under a fresh salt.
func (l *Ledger) ChangePassword(username, oldPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	e, err := l.lookup(username)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !cryptox.Verify(l.hasher, []byte(oldPassword), e.acc.Salt, e.acc.Hash) {
		return fmt.Errorf("%w: old password does not match", common.ErrUnauthorized)
	}
	salt := cryptox.NewSalt()
	e.acc.Salt = salt
	e.acc.Hash = l.hasher.Hash([]byte(newPassword), salt)
	return nil
}

// AccrueInterest multiplies every positive balance by (1 + rate), rounded to
// cents, and returns how many accounts it touched. Each account is locked in
// turn, never all at once.
func (l *Ledger) AccrueInterest(rate decimal.Decimal) (int, error) {
	if rate.Sign() < 0 {
		return 0, fmt.Errorf("%w: interest rate must not be negative", common.ErrValidation)
	}
	factor := decimal.NewFromInt(1).Add(rate)

	updated := 0
	for _, e := range l.entries() {
		e.mu.Lock()
		if e.acc.Balance.Sign() > 0 {
			e.acc.Balance = e.acc.Balance.Mul(factor).Round(AmountPlaces)
			updated++
		}
		e.mu.Unlock()
	}
	return updated, nil
}

// Snapshot copies every account, sorted by username. Each copy is taken under
// its account lock, so no record is ever torn.
func (l *Ledger) Snapshot() []Account {
	entries := l.entries()
	out := make([]Account, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.copyLocked())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func (l *Ledger) entries() []*entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*entry, 0, len(l.accounts))
	for _, e := range l.accounts {
		out = append(out, e)
	}
	return out
}
