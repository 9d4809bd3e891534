package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"github.com/dmitrijs2005/gophbank/internal/logging"
	"github.com/dmitrijs2005/gophbank/internal/netx"
	"github.com/dmitrijs2005/gophbank/internal/protocol"
	"github.com/dmitrijs2005/gophbank/internal/server/activity"
	"github.com/dmitrijs2005/gophbank/internal/server/ledger"
	"github.com/dmitrijs2005/gophbank/internal/server/persistence"
	"github.com/dmitrijs2005/gophbank/internal/server/sessions"
	"github.com/google/uuid"
)

// Handler runs the per-connection request loop. One Handler serves every
// connection; per-connection state lives in connState.
type Handler struct {
	ledger   *ledger.Ledger
	sessions *sessions.Registry
	saver    persistence.Saver
	recorder *activity.Recorder
	logger   logging.Logger
}

func NewHandler(l *ledger.Ledger, r *sessions.Registry, saver persistence.Saver,
	recorder *activity.Recorder, logger logging.Logger) *Handler {
	return &Handler{
		ledger:   l,
		sessions: r,
		saver:    saver,
		recorder: recorder,
		logger:   logger.With("module", "handler"),
	}
}

// connState is owned by a single connection goroutine.
type connState struct {
	id     uuid.UUID
	remote string
	logger logging.Logger

	// non-empty while authenticated
	username string
}

func (c *connState) authenticated() bool { return c.username != "" }

// Serve reads requests from rw until the peer goes away or the line stream
// breaks, answering each one in order. A held session is always released on
// return.
func (h *Handler) Serve(ctx context.Context, rw io.ReadWriter, id uuid.UUID, remote string) {
	st := &connState{
		id:     id,
		remote: remote,
		logger: h.logger.With("conn", id.String(), "remote", remote),
	}
	defer h.terminate(ctx, st)

	st.logger.Debug(ctx, "Connection opened")

	lr := netx.NewLineReader(rw)
	for {
		var req protocol.Request
		err := lr.ReadJSON(&req)

		var resp protocol.Response
		switch {
		case err == nil:
			resp = h.dispatch(ctx, st, req)
		case netx.IsDecodeError(err):
			st.logger.Debug(ctx, "Malformed request", "error", err.Error())
			resp = errorResponse(fmt.Errorf("%w: malformed request", common.ErrProtocol))
		case errors.Is(err, io.EOF):
			return
		default:
			if !errors.Is(err, net.ErrClosed) {
				st.logger.Warn(ctx, "Read failed", "error", err.Error())
			}
			return
		}

		if err := netx.WriteJSON(rw, resp); err != nil {
			st.logger.Warn(ctx, "Write failed", "error", err.Error())
			return
		}
	}
}

func (h *Handler) terminate(ctx context.Context, st *connState) {
	if st.authenticated() {
		if h.sessions.Release(st.username, st.id) {
			h.recorder.Disconnect(ctx, st.username, st.remote)
			st.logger.Info(ctx, "Session released on disconnect", "username", st.username)
		}
		st.username = ""
	}
	st.logger.Debug(ctx, "Connection closed")
}

func (h *Handler) dispatch(ctx context.Context, st *connState, req protocol.Request) protocol.Response {
	if !st.authenticated() {
		switch req.Action {
		case protocol.ActionRegister:
			return h.register(ctx, st, req)
		case protocol.ActionLogin:
			return h.login(ctx, st, req)
		case protocol.ActionQuery, protocol.ActionDeposit, protocol.ActionWithdraw,
			protocol.ActionChangePassword, protocol.ActionLogout:
			return errorResponse(fmt.Errorf("%w: not logged in", common.ErrUnauthorized))
		}
		return unknownAction(req.Action)
	}

	switch req.Action {
	case protocol.ActionRegister, protocol.ActionLogin:
		return errorResponse(fmt.Errorf("%w: %s is not allowed while logged in", common.ErrProtocol, req.Action))
	case protocol.ActionQuery, protocol.ActionDeposit, protocol.ActionWithdraw,
		protocol.ActionChangePassword, protocol.ActionLogout:
	default:
		return unknownAction(req.Action)
	}

	username, err := h.owned(st, req)
	if err != nil {
		return errorResponse(err)
	}

	switch req.Action {
	case protocol.ActionQuery:
		return h.query(ctx, username)
	case protocol.ActionDeposit:
		return h.deposit(ctx, username, req)
	case protocol.ActionWithdraw:
		return h.withdraw(ctx, username, req)
	case protocol.ActionChangePassword:
		return h.changePassword(ctx, username, req)
	default:
		return h.logout(ctx, st, username)
	}
}

func unknownAction(action string) protocol.Response {
	return errorResponse(fmt.Errorf("%w: unknown action %q", common.ErrProtocol, action))
}

// owned resolves the account a protected request acts on and checks that
// this connection still holds its session. An omitted username means the
// logged-in user.
func (h *Handler) owned(st *connState, req protocol.Request) (string, error) {
	username := req.Username
	if username == "" {
		username = st.username
	}
	if username != st.username || !h.sessions.IsOwner(username, st.id) {
		return "", fmt.Errorf("%w: session for %q is not held by this connection", common.ErrUnauthorized, username)
	}
	return username, nil
}

// persist saves after a mutation. A failed save is logged by the saver and
// does not turn the response into an error.
func (h *Handler) persist(ctx context.Context) {
	_ = h.saver.Save(ctx, h.ledger)
}

func (h *Handler) register(ctx context.Context, st *connState, req protocol.Request) protocol.Response {
	_, err := h.ledger.Create(req.Username, req.Password)
	h.recorder.Register(ctx, req.Username, st.remote, err == nil)
	if err != nil {
		return errorResponse(err)
	}
	h.persist(ctx)
	st.logger.Info(ctx, "Account registered", "username", req.Username)
	return protocol.Success("Registration successful")
}

func (h *Handler) login(ctx context.Context, st *connState, req protocol.Request) protocol.Response {
	if req.Username == "" || req.Password == "" {
		return errorResponse(fmt.Errorf("%w: username and password are required", common.ErrValidation))
	}
	if !h.ledger.Verify(req.Username, req.Password) {
		h.recorder.Login(ctx, req.Username, st.remote, false)
		return errorResponse(fmt.Errorf("%w: invalid username or password", common.ErrUnauthorized))
	}
	if !h.sessions.TryAcquire(req.Username, st.id) {
		if s, ok := h.sessions.Get(req.Username); ok {
			st.logger.Info(ctx, "Login refused, session already held",
				"username", req.Username, "holder", s.ConnID.String(), "since", s.CreatedAt)
		}
		h.recorder.Login(ctx, req.Username, st.remote, false)
		return errorResponse(common.ErrSessionConflict)
	}

	st.username = req.Username
	h.recorder.Login(ctx, req.Username, st.remote, true)
	st.logger.Info(ctx, "User logged in", "username", req.Username)
	return protocol.Success("Login successful")
}

func (h *Handler) query(ctx context.Context, username string) protocol.Response {
	bal, err := h.ledger.Balance(username)
	if err != nil {
		return errorResponse(err)
	}
	h.recorder.BalanceCheck(ctx, username)

	resp := protocol.Success("Balance retrieved")
	resp.Balance = protocol.Money(bal)
	return resp
}

func requireAmount(req protocol.Request) error {
	if req.Amount == nil {
		return fmt.Errorf("%w: amount is required", common.ErrValidation)
	}
	return nil
}

func (h *Handler) deposit(ctx context.Context, username string, req protocol.Request) protocol.Response {
	if err := requireAmount(req); err != nil {
		return errorResponse(err)
	}
	bal, err := h.ledger.Deposit(username, *req.Amount)
	if err != nil {
		return errorResponse(err)
	}
	h.persist(ctx)
	h.recorder.Deposit(ctx, username, *req.Amount)

	resp := protocol.Success("Deposit successful")
	resp.Amount = protocol.Money(*req.Amount)
	resp.Balance = protocol.Money(bal)
	return resp
}

func (h *Handler) withdraw(ctx context.Context, username string, req protocol.Request) protocol.Response {
	if err := requireAmount(req); err != nil {
		return errorResponse(err)
	}
	bal, err := h.ledger.Withdraw(username, *req.Amount)
	if err != nil {
		if errors.Is(err, common.ErrInsufficientFunds) {
			h.recorder.Withdrawal(ctx, username, *req.Amount, false)
		}
		return errorResponse(err)
	}
	h.persist(ctx)
	h.recorder.Withdrawal(ctx, username, *req.Amount, true)

	resp := protocol.Success("Withdrawal successful")
	resp.Amount = protocol.Money(*req.Amount)
	resp.Balance = protocol.Money(bal)
	return resp
}

func (h *Handler) changePassword(ctx context.Context, username string, req protocol.Request) protocol.Response {
	err := h.ledger.ChangePassword(username, req.OldPassword, req.NewPassword)
	h.recorder.PasswordChange(ctx, username, err == nil)
	if err != nil {
		return errorResponse(err)
	}
	h.persist(ctx)
	return protocol.Success("Password changed")
}

// logout drops the session but keeps the connection open in the
// unauthenticated state.
func (h *Handler) logout(ctx context.Context, st *connState, username string) protocol.Response {
	h.sessions.Release(username, st.id)
	st.username = ""
	h.recorder.Logout(ctx, username)
	st.logger.Info(ctx, "User logged out", "username", username)
	return protocol.Success("Logout successful")
}
