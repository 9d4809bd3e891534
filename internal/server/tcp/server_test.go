package tcp

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"github.com/dmitrijs2005/gophbank/internal/cryptox"
	"github.com/dmitrijs2005/gophbank/internal/logging"
	"github.com/dmitrijs2005/gophbank/internal/netx"
	"github.com/dmitrijs2005/gophbank/internal/protocol"
	"github.com/dmitrijs2005/gophbank/internal/server/activity"
	"github.com/dmitrijs2005/gophbank/internal/server/ledger"
	"github.com/dmitrijs2005/gophbank/internal/server/sessions"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSaver struct {
	calls atomic.Int32
	err   error
}

func (s *countingSaver) Save(context.Context, *ledger.Ledger) error {
	s.calls.Add(1)
	return s.err
}

type fixture struct {
	addr     string
	ledger   *ledger.Ledger
	sessions *sessions.Registry
	saver    *countingSaver
	server   *Server
	cancel   context.CancelFunc
}

func startServer(t *testing.T, grace time.Duration) *fixture {
	t.Helper()
	return startServerWithSaver(t, grace, &countingSaver{})
}

func startServerWithSaver(t *testing.T, grace time.Duration, saver *countingSaver) *fixture {
	t.Helper()

	l := ledger.New(ledger.WithHasher(cryptox.NewArgon2Hasher(cryptox.Params{Time: 1, MemoryKiB: 64, Threads: 1, KeyLen: 32})))
	reg := sessions.NewRegistry()
	h := NewHandler(l, reg, saver, activity.NewRecorder(logging.Nop{}), logging.Nop{})
	srv := NewServer("127.0.0.1:0", grace, h, logging.Nop{})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.Start(ctx))

	f := &fixture{addr: srv.Addr().String(), ledger: l, sessions: reg, saver: saver, server: srv, cancel: cancel}
	var once sync.Once
	t.Cleanup(func() { once.Do(func() { cancel(); srv.Stop() }) })
	return f
}

type client struct {
	t    *testing.T
	conn net.Conn
	lr   *netx.LineReader
}

func dial(t *testing.T, addr string) *client {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn, lr: netx.NewLineReader(conn)}
}

func (c *client) raw(line string) protocol.Response {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
	return c.read()
}

func (c *client) do(req protocol.Request) protocol.Response {
	c.t.Helper()
	require.NoError(c.t, netx.WriteJSON(c.conn, req))
	return c.read()
}

func (c *client) read() protocol.Response {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var resp protocol.Response
	require.NoError(c.t, c.lr.ReadJSON(&resp))
	return resp
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestEndToEnd_AliceScenario(t *testing.T) {
	f := startServer(t, time.Second)
	a := dial(t, f.addr)
	b := dial(t, f.addr)

	resp := a.do(protocol.Request{Action: protocol.ActionRegister, Username: "alice", Password: "pw1"})
	require.True(t, resp.OK(), resp.Message)

	resp = a.do(protocol.Request{Action: protocol.ActionLogin, Username: "alice", Password: "pw1"})
	require.True(t, resp.OK(), resp.Message)
	assert.True(t, f.sessions.IsOwner("alice", mustSession(t, f, "alice")))

	resp = b.do(protocol.Request{Action: protocol.ActionLogin, Username: "alice", Password: "pw1"})
	assert.False(t, resp.OK())
	assert.Equal(t, protocol.CodeSessionConflict, resp.Code)

	resp = a.do(protocol.Request{Action: protocol.ActionDeposit, Username: "alice", Amount: amount("50")})
	require.True(t, resp.OK(), resp.Message)
	assert.Equal(t, "50.00", string(resp.Amount))
	assert.Equal(t, "50.00", string(resp.Balance))

	resp = a.do(protocol.Request{Action: protocol.ActionWithdraw, Username: "alice", Amount: amount("20")})
	require.True(t, resp.OK(), resp.Message)
	assert.Equal(t, "30.00", string(resp.Balance))

	resp = a.do(protocol.Request{Action: protocol.ActionQuery, Username: "alice"})
	require.True(t, resp.OK(), resp.Message)
	assert.Equal(t, "30.00", string(resp.Balance))

	resp = a.do(protocol.Request{Action: protocol.ActionLogout, Username: "alice"})
	require.True(t, resp.OK(), resp.Message)
	_, held := f.sessions.Get("alice")
	assert.False(t, held)

	resp = b.do(protocol.Request{Action: protocol.ActionLogin, Username: "alice", Password: "pw1"})
	assert.True(t, resp.OK(), resp.Message)

	// register, deposit and withdraw each saved once
	assert.EqualValues(t, 3, f.saver.calls.Load())
}

func mustSession(t *testing.T, f *fixture, username string) uuid.UUID {
	t.Helper()
	s, ok := f.sessions.Get(username)
	require.True(t, ok)
	return s.ConnID
}

func TestMalformedAndUnknownKeepConnectionOpen(t *testing.T) {
	f := startServer(t, time.Second)
	c := dial(t, f.addr)

	resp := c.raw(`{"action": "register", "username": `)
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, protocol.CodeProtocol, resp.Code)

	resp = c.raw(`{"action":"deposit","amount":"abc"}`)
	assert.Equal(t, protocol.CodeProtocol, resp.Code)

	resp = c.do(protocol.Request{Action: "transfer"})
	assert.Equal(t, protocol.CodeProtocol, resp.Code)
	assert.Contains(t, resp.Message, "transfer")

	resp = c.do(protocol.Request{Action: protocol.ActionRegister, Username: "bob", Password: "pw"})
	assert.True(t, resp.OK(), resp.Message)
}

func TestProtectedActionsRequireLogin(t *testing.T) {
	f := startServer(t, time.Second)
	c := dial(t, f.addr)

	for _, action := range []string{
		protocol.ActionQuery, protocol.ActionDeposit, protocol.ActionWithdraw,
		protocol.ActionChangePassword, protocol.ActionLogout,
	} {
		resp := c.do(protocol.Request{Action: action, Username: "alice", Amount: amount("1")})
		assert.Equal(t, protocol.CodeAuth, resp.Code, action)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	f := startServer(t, time.Second)
	c := dial(t, f.addr)

	require.True(t, c.do(protocol.Request{Action: protocol.ActionRegister, Username: "alice", Password: "pw1"}).OK())

	resp := c.do(protocol.Request{Action: protocol.ActionLogin, Username: "alice", Password: "nope"})
	assert.Equal(t, protocol.CodeAuth, resp.Code)
	resp = c.do(protocol.Request{Action: protocol.ActionLogin, Username: "ghost", Password: "pw1"})
	assert.Equal(t, protocol.CodeAuth, resp.Code)
	resp = c.do(protocol.Request{Action: protocol.ActionLogin, Username: "alice"})
	assert.Equal(t, protocol.CodeValidation, resp.Code)

	assert.Equal(t, 0, f.sessions.Len())
}

func TestRegister_Errors(t *testing.T) {
	f := startServer(t, time.Second)
	c := dial(t, f.addr)

	require.True(t, c.do(protocol.Request{Action: protocol.ActionRegister, Username: "alice", Password: "pw1"}).OK())

	resp := c.do(protocol.Request{Action: protocol.ActionRegister, Username: "alice", Password: "pw2"})
	assert.Equal(t, protocol.CodeUsernameTaken, resp.Code)
	resp = c.do(protocol.Request{Action: protocol.ActionRegister, Username: "", Password: "pw2"})
	assert.Equal(t, protocol.CodeValidation, resp.Code)

	assert.EqualValues(t, 1, f.saver.calls.Load())
}

func TestAuthenticated_StateRules(t *testing.T) {
	f := startServer(t, time.Second)
	a := dial(t, f.addr)

	for _, u := range []string{"alice", "bob"} {
		require.True(t, a.do(protocol.Request{Action: protocol.ActionRegister, Username: u, Password: "pw"}).OK())
	}
	_, err := f.ledger.Deposit("bob", decimal.NewFromInt(10))
	require.NoError(t, err)
	require.True(t, a.do(protocol.Request{Action: protocol.ActionLogin, Username: "alice", Password: "pw"}).OK())

	// acting on someone else's account
	resp := a.do(protocol.Request{Action: protocol.ActionWithdraw, Username: "bob", Amount: amount("5")})
	assert.Equal(t, protocol.CodeAuth, resp.Code)
	bal, _ := f.ledger.Balance("bob")
	assert.True(t, bal.Equal(decimal.NewFromInt(10)))

	resp = a.do(protocol.Request{Action: protocol.ActionLogin, Username: "bob", Password: "pw"})
	assert.Equal(t, protocol.CodeProtocol, resp.Code)
	resp = a.do(protocol.Request{Action: protocol.ActionRegister, Username: "carol", Password: "pw"})
	assert.Equal(t, protocol.CodeProtocol, resp.Code)

	// username may be omitted once logged in
	resp = a.do(protocol.Request{Action: protocol.ActionQuery})
	require.True(t, resp.OK(), resp.Message)
	assert.Equal(t, "0.00", string(resp.Balance))
}

func TestMoneyErrors(t *testing.T) {
	f := startServer(t, time.Second)
	c := dial(t, f.addr)
	require.True(t, c.do(protocol.Request{Action: protocol.ActionRegister, Username: "alice", Password: "pw"}).OK())
	require.True(t, c.do(protocol.Request{Action: protocol.ActionLogin, Username: "alice", Password: "pw"}).OK())
	require.True(t, c.do(protocol.Request{Action: protocol.ActionDeposit, Amount: amount("30")}).OK())

	tests := []struct {
		name string
		req  protocol.Request
		code string
	}{
		{"missing amount", protocol.Request{Action: protocol.ActionDeposit}, protocol.CodeValidation},
		{"zero deposit", protocol.Request{Action: protocol.ActionDeposit, Amount: amount("0")}, protocol.CodeValidation},
		{"negative withdraw", protocol.Request{Action: protocol.ActionWithdraw, Amount: amount("-1")}, protocol.CodeValidation},
		{"sub-cent", protocol.Request{Action: protocol.ActionDeposit, Amount: amount("0.001")}, protocol.CodeValidation},
		{"overdraw", protocol.Request{Action: protocol.ActionWithdraw, Amount: amount("30.01")}, protocol.CodeInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := c.do(tt.req)
			assert.Equal(t, tt.code, resp.Code)
		})
	}

	bal, _ := f.ledger.Balance("alice")
	assert.True(t, bal.Equal(decimal.NewFromInt(30)), "got %s", bal)
}

func TestNumericAmountOnTheWire(t *testing.T) {
	f := startServer(t, time.Second)
	c := dial(t, f.addr)
	require.True(t, c.do(protocol.Request{Action: protocol.ActionRegister, Username: "alice", Password: "pw"}).OK())
	require.True(t, c.do(protocol.Request{Action: protocol.ActionLogin, Username: "alice", Password: "pw"}).OK())

	resp := c.raw(`{"action":"deposit","username":"alice","amount":12.5}`)
	require.True(t, resp.OK(), resp.Message)
	assert.Equal(t, "12.50", string(resp.Balance))
}

func TestOversizedAmountsRejectedQuickly(t *testing.T) {
	f := startServer(t, time.Second)
	c := dial(t, f.addr)
	require.True(t, c.do(protocol.Request{Action: protocol.ActionRegister, Username: "mallory", Password: "pw"}).OK())
	require.True(t, c.do(protocol.Request{Action: protocol.ActionLogin, Username: "mallory", Password: "pw"}).OK())

	for _, line := range []string{
		`{"action":"deposit","amount":1e5000000}`,
		`{"action":"deposit","amount":"1e-5000000"}`,
		`{"action":"withdraw","amount":"1e2000000000"}`,
		`{"action":"deposit","amount":"1000000000000.01"}`,
	} {
		start := time.Now()
		resp := c.raw(line)
		assert.Equal(t, protocol.CodeValidation, resp.Code, line)
		assert.Less(t, time.Since(start), time.Second, line)
	}

	maxAmount := ledger.MaxAmount
	resp := c.do(protocol.Request{Action: protocol.ActionDeposit, Amount: &maxAmount})
	require.True(t, resp.OK(), resp.Message)
	assert.Equal(t, "1000000000000.00", string(resp.Balance))
}

func TestChangePassword(t *testing.T) {
	f := startServer(t, time.Second)
	c := dial(t, f.addr)
	require.True(t, c.do(protocol.Request{Action: protocol.ActionRegister, Username: "alice", Password: "pw1"}).OK())
	require.True(t, c.do(protocol.Request{Action: protocol.ActionLogin, Username: "alice", Password: "pw1"}).OK())

	resp := c.do(protocol.Request{Action: protocol.ActionChangePassword, OldPassword: "bad", NewPassword: "pw2"})
	assert.Equal(t, protocol.CodeAuth, resp.Code)

	resp = c.do(protocol.Request{Action: protocol.ActionChangePassword, OldPassword: "pw1", NewPassword: "pw2"})
	require.True(t, resp.OK(), resp.Message)
	assert.True(t, f.ledger.Verify("alice", "pw2"))

	require.True(t, c.do(protocol.Request{Action: protocol.ActionLogout}).OK())
	assert.Equal(t, protocol.CodeAuth, c.do(protocol.Request{Action: protocol.ActionLogin, Username: "alice", Password: "pw1"}).Code)
	assert.True(t, c.do(protocol.Request{Action: protocol.ActionLogin, Username: "alice", Password: "pw2"}).OK())
}

func TestSaveFailureStillSucceeds(t *testing.T) {
	f := startServerWithSaver(t, time.Second, &countingSaver{err: errors.New("disk full")})
	c := dial(t, f.addr)

	resp := c.do(protocol.Request{Action: protocol.ActionRegister, Username: "alice", Password: "pw"})
	assert.True(t, resp.OK(), resp.Message)
	assert.Equal(t, 1, f.ledger.Len())
}

func TestDisconnectReleasesSession(t *testing.T) {
	f := startServer(t, time.Second)
	a := dial(t, f.addr)
	require.True(t, a.do(protocol.Request{Action: protocol.ActionRegister, Username: "alice", Password: "pw"}).OK())
	require.True(t, a.do(protocol.Request{Action: protocol.ActionLogin, Username: "alice", Password: "pw"}).OK())
	require.Equal(t, 1, f.sessions.Len())

	require.NoError(t, a.conn.Close())
	require.Eventually(t, func() bool { return f.sessions.Len() == 0 }, 2*time.Second, 5*time.Millisecond)

	b := dial(t, f.addr)
	assert.True(t, b.do(protocol.Request{Action: protocol.ActionLogin, Username: "alice", Password: "pw"}).OK())
}

func TestConcurrentLogins_ExactlyOneWins(t *testing.T) {
	f := startServer(t, time.Second)
	setup := dial(t, f.addr)
	require.True(t, setup.do(protocol.Request{Action: protocol.ActionRegister, Username: "alice", Password: "pw"}).OK())

	const n = 8
	clients := make([]*client, n)
	for i := range clients {
		clients[i] = dial(t, f.addr)
	}

	var wg sync.WaitGroup
	codes := make([]string, n)
	for i, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = netx.WriteJSON(c.conn, protocol.Request{Action: protocol.ActionLogin, Username: "alice", Password: "pw"})
			var resp protocol.Response
			_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			if err := c.lr.ReadJSON(&resp); err == nil {
				codes[i] = resp.Status + "/" + resp.Code
			}
		}()
	}
	wg.Wait()

	ok, conflict := 0, 0
	for _, c := range codes {
		switch c {
		case protocol.StatusSuccess + "/":
			ok++
		case protocol.StatusError + "/" + protocol.CodeSessionConflict:
			conflict++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflict)
}

func TestStop_ClosesIdleConnectionsAfterGrace(t *testing.T) {
	f := startServer(t, 50*time.Millisecond)
	c := dial(t, f.addr)
	require.True(t, c.do(protocol.Request{Action: protocol.ActionRegister, Username: "alice", Password: "pw"}).OK())
	require.True(t, c.do(protocol.Request{Action: protocol.ActionLogin, Username: "alice", Password: "pw"}).OK())

	f.cancel()
	stopped := make(chan struct{})
	go func() {
		f.server.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, 0, f.sessions.Len())
	assert.Equal(t, 0, f.server.Active())

	_, err := net.DialTimeout("tcp", f.addr, 200*time.Millisecond)
	assert.Error(t, err, "listener is closed")
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{common.ErrValidation, protocol.CodeValidation},
		{common.ErrUnauthorized, protocol.CodeAuth},
		{common.ErrSessionConflict, protocol.CodeSessionConflict},
		{common.ErrorNotFound, protocol.CodeNotFound},
		{common.ErrInsufficientFunds, protocol.CodeInsufficientFunds},
		{common.ErrUsernameTaken, protocol.CodeUsernameTaken},
		{common.ErrProtocol, protocol.CodeProtocol},
		{errors.New("boom"), protocol.CodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, codeFor(tt.err), tt.err.Error())
	}

	resp := errorResponse(errors.New("secret detail"))
	assert.Equal(t, common.ErrorInternal.Error(), resp.Message)
}
