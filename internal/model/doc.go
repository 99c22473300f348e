// Package model defines the core data structures used throughout flatscout.
//
// This package contains the following main types:
//   - Address: A target address the user wants to find listings for
//   - SearchConfig: The immutable parameters of one search session
//   - RawListing: A listing as emitted by a site scraper
//   - Match: A listing that was classified against a target address
//   - Report: The archived outcome of one search session
//   - ProgressSnapshot: A point-in-time copy of live session progress
//
// Models live in their own package because the matcher, session, archive,
// database and report packages all exchange them.
//
// The JSON field names of Report and Match are the storage and wire contract:
// every archive backend and every export format uses the same names.
package model
