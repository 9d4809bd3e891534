// Package protocol defines the request and response lines exchanged over
// the bank TCP connection.
package protocol

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

const (
	ActionRegister       = "register"
	ActionLogin          = "login"
	ActionQuery          = "query"
	ActionDeposit        = "deposit"
	ActionWithdraw       = "withdraw"
	ActionChangePassword = "change_password"
	ActionLogout         = "logout"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Machine-readable error codes carried in Response.Code.
const (
	CodeValidation        = "validation"
	CodeAuth              = "auth"
	CodeSessionConflict   = "session_conflict"
	CodeNotFound          = "not_found"
	CodeInsufficientFunds = "insufficient_funds"
	CodeUsernameTaken     = "username_taken"
	CodeProtocol          = "protocol"
	CodeInternal          = "internal"
)

// Request is one client line. Amount accepts both a JSON number and a
// quoted decimal string.
type Request struct {
	Action      string           `json:"action"`
	Username    string           `json:"username,omitempty"`
	Password    string           `json:"password,omitempty"`
	OldPassword string           `json:"oldPassword,omitempty"`
	NewPassword string           `json:"newPassword,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
}

// Response is one server line. Amount and Balance are emitted as JSON
// numbers with two decimal places.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Amount  json.Number `json:"amount,omitempty"`
	Balance json.Number `json:"balance,omitempty"`
}

// Money renders d the way Amount and Balance are sent.
func Money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func (r Response) OK() bool { return r.Status == StatusSuccess }

// BalanceDecimal parses Balance. An absent balance parses as zero.
func (r Response) BalanceDecimal() (decimal.Decimal, error) {
	if r.Balance == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(string(r.Balance))
}

func Success(msg string) Response {
	return Response{Status: StatusSuccess, Message: msg}
}

func Failure(code, msg string) Response {
	return Response{Status: StatusError, Code: code, Message: msg}
}
