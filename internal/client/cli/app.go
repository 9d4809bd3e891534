package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/gophbank/internal/client/client"
	"github.com/dmitrijs2005/gophbank/internal/client/config"
)

// getSimpleText and getPassword are indirections so tests can script input.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

type App struct {
	config   *config.Config
	client   client.Client
	userName string
	reader   *bufio.Reader
	out      io.Writer
}

func NewApp(c *config.Config) *App {
	return newApp(c, client.NewTCPClient(c.ServerEndpointAddr, c.DialTimeout), os.Stdin, os.Stdout)
}

func newApp(c *config.Config, cl client.Client, in io.Reader, out io.Writer) *App {
	return &App{config: c, client: cl, reader: bufio.NewReader(in), out: out}
}

func (a *App) isLoggedIn() bool { return a.userName != "" }

func (a *App) status() string {
	if a.userName == "" {
		return ""
	}
	return fmt.Sprintf("(%s) ", a.userName)
}

// Run starts the REPL and closes the connection when the user leaves.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintf(a.out, "Welcome to GophBank (%s), type 'help' for commands\n", a.config.ServerEndpointAddr)
	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader))
	_ = a.client.Close()
}
