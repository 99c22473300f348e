// Package session runs search sessions.
//
// A Manager owns at most one running Session. A Session searches every
// selected website concurrently, one worker goroutine per site. Workers
// classify listings with the matcher and send events to a single
// aggregator goroutine, which is the only writer of the progress tracker
// and the match list. Callers poll Manager.Status; it copies the current
// state and never waits for a worker.
//
// When all workers return, or after Stop or the session timeout, the
// session builds one model.Report, appends it to the archive, publishes
// it, and only then reports running=false:
//
//	m := session.NewManager(sites, store, store, session.WithLogger(logger))
//	id, err := m.Start(ctx, cfg)
//	...
//	st := m.Status()      // poll
//	m.Stop()              // idempotent
//	report, err := m.Wait(ctx)
package session
