// Package repository provides data access interfaces and implementations for
// the paper discovery service: a durable paper cache (C2) and a per-user
// aggregate store (C3) covering profile, feedback, folders, and follows.
//
// Each interface has two implementations: a PostgreSQL-backed one for
// production (the Pg-prefixed types) and an in-memory one (see the memstore
// subpackage) for tests and zero-config local development. Both satisfy the
// same Transact semantics so the invariants in internal/feedservice can be
// enforced uniformly regardless of backend.
//
// # Constructor pattern
//
// Postgres repository implementations run their queries through a DBTX so
// the same type works against the pool directly or against a transaction.
// NewPgPaperRepository and NewPgSessionRepository take a DBTX;
// NewPgUserRepository takes the *database.DB pool, which Transact uses to
// open its transactions:
//
//	papers := repository.NewPgPaperRepository(db)
//	users := repository.NewPgUserRepository(db)
package repository

import (
	"github.com/helixir/literature-review-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction
// contexts, so repositories work identically whether backed directly by the
// pool or by a transaction handed out from Transact.
type DBTX = database.DBTX

// FeedbackClearTarget selects which feedback set ClearFeedback empties.
type FeedbackClearTarget string

const (
	ClearLiked    FeedbackClearTarget = "liked"
	ClearDisliked FeedbackClearTarget = "disliked"
	ClearAll      FeedbackClearTarget = "all"
)
