package client

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophbank/internal/protocol"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
)

// ServerError is an error response returned by the server.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Is lets errors.Is(err, ErrUnauthorized) match auth refusals.
func (e *ServerError) Is(target error) bool {
	return target == ErrUnauthorized && e.Code == protocol.CodeAuth
}
