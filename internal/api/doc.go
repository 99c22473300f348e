// Package api serves the search session manager, the report archive and
// the address book over HTTP.
//
// All routes live under /api/v1. Errors are JSON objects with an "error"
// field; invalid input is 400, a second concurrent search is 409 and
// unknown ids are 404.
package api
