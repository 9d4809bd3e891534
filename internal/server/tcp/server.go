// Package tcp serves the line-delimited JSON bank protocol.
package tcp

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophbank/internal/logging"
	"github.com/google/uuid"
)

const defaultGracePeriod = 5 * time.Second

type Server struct {
	address     string
	gracePeriod time.Duration
	handler     *Handler
	logger      logging.Logger

	listener   net.Listener
	acceptDone chan struct{}
	wg         sync.WaitGroup

	mu    sync.Mutex
	conns map[uuid.UUID]net.Conn
}

func NewServer(address string, gracePeriod time.Duration, h *Handler, l logging.Logger) *Server {
	if gracePeriod <= 0 {
		gracePeriod = defaultGracePeriod
	}
	return &Server{
		address:     address,
		gracePeriod: gracePeriod,
		handler:     h,
		logger:      l.With("module", "tcp_server"),
		conns:       make(map[uuid.UUID]net.Conn),
	}
}

// Start binds the listener and accepts connections in the background until
// ctx is done.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	s.listener = listener
	s.acceptDone = make(chan struct{})

	s.logger.Info(ctx, "Starting TCP server", "address", listener.Addr().String())

	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn(context.Background(), "Error closing listener", "error", err.Error())
		}
	}()

	go s.acceptLoop(ctx)
	return nil
}

// Addr is the bound address; valid after Start.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer close(s.acceptDone)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn(ctx, "Error accepting connection", "error", err.Error())
			continue
		}

		id := uuid.New()
		s.track(id, conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(id)
			defer conn.Close()
			// handlers outlive the accept context until Stop force-closes them
			s.handler.Serve(context.WithoutCancel(ctx), conn, id, conn.RemoteAddr().String())
		}()
	}
}

func (s *Server) track(id uuid.UUID, c net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[id] = c
}

func (s *Server) untrack(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
}

// Active is the number of open connections.
func (s *Server) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Stop waits up to the grace period for connections to finish on their own,
// then closes whatever is left and waits for those handlers to release
// their sessions. The Start context must already be done.
func (s *Server) Stop() {
	ctx := context.Background()
	<-s.acceptDone
	s.logger.Info(ctx, "Shutting down TCP server", "active", s.Active())

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.gracePeriod):
		s.logger.Warn(ctx, "Grace period exceeded, closing remaining connections", "active", s.Active())
		s.mu.Lock()
		for _, c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
		<-done
	}

	s.logger.Info(ctx, "TCP server stopped")
}
