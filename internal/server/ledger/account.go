package ledger

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Account is a point-in-time copy of one user's credentials and balance.
// Mutating it has no effect on the ledger.
type Account struct {
	Username string
	Salt     []byte
	Hash     []byte
	Balance  decimal.Decimal
}

// entry is the ledger-owned state of one account. mu is the account's
// exclusive section: every read or write of acc happens under it.
type entry struct {
	mu  sync.Mutex
	acc Account
}

func (e *entry) copyLocked() Account {
	return Account{
		Username: e.acc.Username,
		Salt:     append([]byte(nil), e.acc.Salt...),
		Hash:     append([]byte(nil), e.acc.Hash...),
		Balance:  e.acc.Balance,
	}
}
