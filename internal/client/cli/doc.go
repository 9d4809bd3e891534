// Package cli is the interactive GophBank client.
//
// The REPL accepts register and login while logged out, and balance,
// deposit, withdraw, passwd and logout once logged in; help and exit work in
// both states. Passwords are read from the terminal without echo.
package cli
