package snapshots

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"github.com/dmitrijs2005/gophbank/internal/server/ledger"
	"github.com/shopspring/decimal"
)

const (
	FormatName    = "gophbank.ledger"
	FormatVersion = 1
)

// Meta identifies the layout of a snapshot document.
type Meta struct {
	Format  string    `json:"format"`
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
}

// Record is one account as written to storage. Salt and hash are base64
// encoded by encoding/json; the balance is a decimal string.
type Record struct {
	Username string          `json:"username"`
	Salt     []byte          `json:"salt"`
	Hash     []byte          `json:"hash"`
	Balance  decimal.Decimal `json:"balance"`
}

// Document is the full snapshot.
type Document struct {
	Meta     Meta     `json:"_meta"`
	Accounts []Record `json:"accounts"`
}

// Encode serializes accounts into a version 1 document.
func Encode(accounts []ledger.Account, savedAt time.Time) ([]byte, error) {
	doc := Document{
		Meta:     Meta{Format: FormatName, Version: FormatVersion, SavedAt: savedAt.UTC()},
		Accounts: make([]Record, 0, len(accounts)),
	}
	for _, a := range accounts {
		doc.Accounts = append(doc.Accounts, Record{
			Username: a.Username,
			Salt:     a.Salt,
			Hash:     a.Hash,
			Balance:  a.Balance,
		})
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode snapshot: %v", common.ErrPersistence, err)
	}
	return b, nil
}

// Decode parses a document and returns its accounts. Unknown formats,
// versions and duplicate or empty usernames are reported as corruption.
func Decode(data []byte) ([]ledger.Account, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", common.ErrPersistence, err)
	}
	if doc.Meta.Format != FormatName {
		return nil, fmt.Errorf("%w: unexpected snapshot format %q", common.ErrPersistence, doc.Meta.Format)
	}
	if doc.Meta.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", common.ErrPersistence, doc.Meta.Version)
	}

	seen := make(map[string]struct{}, len(doc.Accounts))
	out := make([]ledger.Account, 0, len(doc.Accounts))
	for i, r := range doc.Accounts {
		if r.Username == "" {
			return nil, fmt.Errorf("%w: record %d has no username", common.ErrPersistence, i)
		}
		if _, dup := seen[r.Username]; dup {
			return nil, fmt.Errorf("%w: duplicate username %q", common.ErrPersistence, r.Username)
		}
		seen[r.Username] = struct{}{}
		out = append(out, ledger.Account{
			Username: r.Username,
			Salt:     r.Salt,
			Hash:     r.Hash,
			Balance:  r.Balance,
		})
	}
	return out, nil
}
