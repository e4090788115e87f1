// Package consoleapi holds the wire types exchanged with the console backend.
//
// The backend speaks JSON over HTTP under a versioned base URL such as
// http://localhost:8000/api/v1. Errors use a {"detail": "..."} envelope,
// decoded into *APIError by ParseError.
package consoleapi
