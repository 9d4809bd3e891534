package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for REPL output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL drives. App satisfies it;
// tests use a stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Balance(ctx context.Context) error
	Deposit(ctx context.Context, args []string) error
	Withdraw(ctx context.Context, args []string) error
	ChangePassword(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL reads commands until EOF or exit. Commands that need a login are
// refused while logged out and the other way round. Handler errors are
// already shown to the user, so the loop ignores them.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("bank> %s", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: (b)alance, (d)eposit [amount], (w)ithdraw [amount], passwd, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "exit", "quit":
			printlnFn("Bye!")
			return

		case "register", "login":
			if a.isLoggedIn() {
				printlnFn("Already logged in, log out first")
				continue
			}
			if cmd == "register" {
				_ = a.Register(ctx)
			} else {
				_ = a.Login(ctx)
			}

		case "b", "balance", "d", "deposit", "w", "withdraw", "passwd", "logout":
			if !a.isLoggedIn() {
				printlnFn("Please log in first")
				continue
			}
			switch cmd {
			case "b", "balance":
				_ = a.Balance(ctx)
			case "d", "deposit":
				_ = a.Deposit(ctx, args)
			case "w", "withdraw":
				_ = a.Withdraw(ctx, args)
			case "passwd":
				_ = a.ChangePassword(ctx)
			default:
				_ = a.Logout(ctx)
			}

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
