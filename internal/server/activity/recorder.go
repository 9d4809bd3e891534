// Package activity writes the user activity log: one record per
// user-visible event, kept apart from the operational log.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/gophbank/internal/filex"
	"github.com/dmitrijs2005/gophbank/internal/logging"
	"github.com/shopspring/decimal"
)

// Event names as they appear in the "event" field.
const (
	EventLogin          = "LOGIN"
	EventRegister       = "REGISTER"
	EventBalanceCheck   = "BALANCE_CHECK"
	EventDeposit        = "DEPOSIT"
	EventWithdrawal     = "WITHDRAWAL"
	EventPasswordChange = "PASSWORD_CHANGE"
	EventLogout         = "LOGOUT"
	EventDisconnect     = "DISCONNECT"
	EventInterest       = "INTEREST"
)

type Recorder struct {
	log logging.Logger
}

func NewRecorder(l logging.Logger) *Recorder {
	return &Recorder{log: l}
}

// Open returns a recorder that appends JSON records to path. The returned
// close function flushes and closes the file.
func Open(path string) (*Recorder, func() error, error) {
	if err := filex.EnsureParentDir(path); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("open activity log: %w", err)
	}
	return NewRecorder(logging.NewJSONLogger(f, slog.LevelInfo)), f.Close, nil
}

func outcome(ok bool) string {
	if ok {
		return "successful"
	}
	return "failed"
}

func (r *Recorder) Register(ctx context.Context, username, remote string, ok bool) {
	r.log.Info(ctx, EventRegister, "event", EventRegister, "username", username, "remote", remote, "outcome", outcome(ok))
}

func (r *Recorder) Login(ctx context.Context, username, remote string, ok bool) {
	r.log.Info(ctx, EventLogin, "event", EventLogin, "username", username, "remote", remote, "outcome", outcome(ok))
}

func (r *Recorder) BalanceCheck(ctx context.Context, username string) {
	r.log.Info(ctx, EventBalanceCheck, "event", EventBalanceCheck, "username", username)
}

func (r *Recorder) Deposit(ctx context.Context, username string, amount decimal.Decimal) {
	r.log.Info(ctx, EventDeposit, "event", EventDeposit, "username", username, "amount", amount.StringFixed(2))
}

func (r *Recorder) Withdrawal(ctx context.Context, username string, amount decimal.Decimal, ok bool) {
	r.log.Info(ctx, EventWithdrawal, "event", EventWithdrawal, "username", username,
		"amount", amount.StringFixed(2), "outcome", outcome(ok))
}

func (r *Recorder) PasswordChange(ctx context.Context, username string, ok bool) {
	r.log.Info(ctx, EventPasswordChange, "event", EventPasswordChange, "username", username, "outcome", outcome(ok))
}

func (r *Recorder) Logout(ctx context.Context, username string) {
	r.log.Info(ctx, EventLogout, "event", EventLogout, "username", username)
}

// Disconnect records a connection that went away while still holding a
// session.
func (r *Recorder) Disconnect(ctx context.Context, username, remote string) {
	r.log.Info(ctx, EventDisconnect, "event", EventDisconnect, "username", username, "remote", remote)
}

// Interest records one accrual pass.
func (r *Recorder) Interest(ctx context.Context, rate decimal.Decimal, updated int) {
	r.log.Info(ctx, EventInterest, "event", EventInterest, "rate", rate.String(), "updated", updated)
}
