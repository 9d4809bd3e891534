package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophbank/internal/netx"
	"github.com/dmitrijs2005/gophbank/internal/protocol"
	"github.com/shopspring/decimal"
)

// Client is the bank API as the CLI sees it.
type Client interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) error
	Balance(ctx context.Context) (decimal.Decimal, error)
	Deposit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error)
	Withdraw(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	Logout(ctx context.Context) error
	Close() error
}

// dialer is a seam for tests.
var dialer = func(ctx context.Context, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", address)
}

type TCPClient struct {
	address string
	timeout time.Duration

	mu       sync.Mutex
	conn     net.Conn
	reader   *netx.LineReader
	username string
}

func NewTCPClient(address string, timeout time.Duration) *TCPClient {
	return &TCPClient{address: address, timeout: timeout}
}

func (c *TCPClient) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	conn, err := dialer(ctx, c.address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c.conn = conn
	c.reader = netx.NewLineReader(conn)
	return nil
}

func (c *TCPClient) dropLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn, c.reader, c.username = nil, nil, ""
}

// do sends one request and waits for its response line. A broken
// connection is dropped, which also ends the server-side session.
func (c *TCPClient) do(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doLocked(ctx, req)
}

func (c *TCPClient) doLocked(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if err := c.connectLocked(ctx); err != nil {
		return protocol.Response{}, err
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetDeadline(deadline)

	if err := netx.WriteJSON(c.conn, req); err != nil {
		c.dropLocked()
		return protocol.Response{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var resp protocol.Response
	if err := c.reader.ReadJSON(&resp); err != nil {
		c.dropLocked()
		return protocol.Response{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

// call runs req and turns an error response into *ServerError.
func (c *TCPClient) call(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if req.Username == "" {
		req.Username = c.username
	}
	resp, err := c.doLocked(ctx, req)
	if err != nil {
		return resp, err
	}
	if !resp.OK() {
		return resp, &ServerError{Code: resp.Code, Message: resp.Message}
	}
	return resp, nil
}

func (c *TCPClient) Register(ctx context.Context, username, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.call(ctx, protocol.Request{Action: protocol.ActionRegister, Username: username, Password: password})
	return err
}

func (c *TCPClient) Login(ctx context.Context, username, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.call(ctx, protocol.Request{Action: protocol.ActionLogin, Username: username, Password: password})
	if err != nil {
		return err
	}
	c.username = username
	return nil
}

// loggedInAs is the logged-in user, or "".
func (c *TCPClient) loggedInAs() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

func (c *TCPClient) Balance(ctx context.Context) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, err := c.call(ctx, protocol.Request{Action: protocol.ActionQuery})
	if err != nil {
		return decimal.Zero, err
	}
	return resp.BalanceDecimal()
}

func (c *TCPClient) move(ctx context.Context, action string, amount decimal.Decimal) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, err := c.call(ctx, protocol.Request{Action: action, Amount: &amount})
	if err != nil {
		return decimal.Zero, err
	}
	return resp.BalanceDecimal()
}

func (c *TCPClient) Deposit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	return c.move(ctx, protocol.ActionDeposit, amount)
}

func (c *TCPClient) Withdraw(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	return c.move(ctx, protocol.ActionWithdraw, amount)
}

func (c *TCPClient) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.call(ctx, protocol.Request{Action: protocol.ActionChangePassword, OldPassword: oldPassword, NewPassword: newPassword})
	return err
}

func (c *TCPClient) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.call(ctx, protocol.Request{Action: protocol.ActionLogout})
	if err != nil {
		return err
	}
	c.username = ""
	return nil
}

// Close drops the connection; the server releases any session it held.
func (c *TCPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked()
	return nil
}
