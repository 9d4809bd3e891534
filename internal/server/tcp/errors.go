package tcp

import (
	"errors"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"github.com/dmitrijs2005/gophbank/internal/protocol"
)

var codes = []struct {
	err  error
	code string
}{
	{common.ErrValidation, protocol.CodeValidation},
	{common.ErrUnauthorized, protocol.CodeAuth},
	{common.ErrSessionConflict, protocol.CodeSessionConflict},
	{common.ErrorNotFound, protocol.CodeNotFound},
	{common.ErrInsufficientFunds, protocol.CodeInsufficientFunds},
	{common.ErrUsernameTaken, protocol.CodeUsernameTaken},
	{common.ErrProtocol, protocol.CodeProtocol},
}

// codeFor maps a domain error to its wire code. Anything unrecognised is
// an internal error.
func codeFor(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return protocol.CodeInternal
}

func errorResponse(err error) protocol.Response {
	code := codeFor(err)
	if code == protocol.CodeInternal {
		return protocol.Failure(code, common.ErrorInternal.Error())
	}
	return protocol.Failure(code, err.Error())
}
