// Package store persists final session transcripts.
//
// The write happens fire-and-forget after a session emits its final caption;
// a store failure is logged and never surfaces on the protocol path. When no
// database is configured the Noop implementation keeps the rest of the
// service unchanged.
package store
