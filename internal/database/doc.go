// Package database provides persistent storage for flatscout.
//
// Two backends implement the Store interface, which combines the report
// archive with the address book:
//   - ReportDB stores everything in a single SQLite file (modernc.org/sqlite,
//     no CGO) under the XDG data directory. It is the default for the CLI.
//   - PGStore stores everything in PostgreSQL through a pgx connection pool
//     and is meant for the HTTP server.
//
// Both backends use the same tables (addresses, reports, matches) and the
// same field names as the model package's JSON contract.
package database
