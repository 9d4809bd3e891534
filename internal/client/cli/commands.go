package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophbank/internal/client/client"
	"github.com/shopspring/decimal"
)

// report prints err for the user and returns it.
func (a *App) report(err error) error {
	var se *client.ServerError
	switch {
	case errors.As(err, &se):
		fmt.Fprintln(a.out, "Error:", se.Message)
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintln(a.out, "Server unavailable, try again later")
		a.userName = ""
	default:
		fmt.Fprintln(a.out, "Error:", err.Error())
	}
	return err
}

func (a *App) credentials() (string, []byte, error) {
	userName, err := getSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return "", nil, err
	}
	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return "", nil, err
	}
	return userName, password, nil
}

func (a *App) Register(ctx context.Context) error {
	userName, password, err := a.credentials()
	if err != nil {
		return a.report(err)
	}
	if err := a.client.Register(ctx, userName, string(password)); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Registered, you can log in now")
	return nil
}

func (a *App) Login(ctx context.Context) error {
	userName, password, err := a.credentials()
	if err != nil {
		return a.report(err)
	}
	if err := a.client.Login(ctx, userName, string(password)); err != nil {
		return a.report(err)
	}
	a.userName = userName
	fmt.Fprintln(a.out, "Logged in as", userName)
	return nil
}

func (a *App) Balance(ctx context.Context) error {
	bal, err := a.client.Balance(ctx)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Balance:", bal.StringFixed(2))
	return nil
}

// readAmount takes the amount from args or prompts for it.
func (a *App) readAmount(args []string) (decimal.Decimal, error) {
	var s string
	if len(args) > 0 {
		s = args[0]
	} else {
		var err error
		if s, err = getSimpleText(a.reader, "Enter amount", a.out); err != nil {
			return decimal.Zero, err
		}
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not an amount", s)
	}
	return amount, nil
}

func (a *App) Deposit(ctx context.Context, args []string) error {
	amount, err := a.readAmount(args)
	if err != nil {
		return a.report(err)
	}
	bal, err := a.client.Deposit(ctx, amount)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Deposited %s, balance: %s\n", amount.StringFixed(2), bal.StringFixed(2))
	return nil
}

func (a *App) Withdraw(ctx context.Context, args []string) error {
	amount, err := a.readAmount(args)
	if err != nil {
		return a.report(err)
	}
	bal, err := a.client.Withdraw(ctx, amount)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Withdrew %s, balance: %s\n", amount.StringFixed(2), bal.StringFixed(2))
	return nil
}

func (a *App) ChangePassword(ctx context.Context) error {
	oldPassword, err := getPassword(a.out, "Current password")
	if err != nil {
		return a.report(err)
	}
	newPassword, err := getPassword(a.out, "New password")
	if err != nil {
		return a.report(err)
	}
	confirm, err := getPassword(a.out, "Repeat new password")
	if err != nil {
		return a.report(err)
	}
	if string(newPassword) != string(confirm) {
		return a.report(errors.New("passwords do not match"))
	}
	if err := a.client.ChangePassword(ctx, string(oldPassword), string(newPassword)); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Password changed")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		return a.report(err)
	}
	a.userName = ""
	fmt.Fprintln(a.out, "Logged out")
	return nil
}
