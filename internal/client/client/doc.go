// Package client talks to the GophBank server over its line-JSON protocol.
//
// TCPClient holds one connection, which is also the server-side session:
// logging in binds the connection to the user until Logout or Close.
// Transport failures surface as ErrUnavailable; server-side refusals as
// *ServerError, which also matches ErrUnauthorized for auth codes.
package client
