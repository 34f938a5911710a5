// Package engine executes federated queries.
//
// A query is one main subquery plus zero or more joins, each addressed to a
// registered backend. The engine runs it in fixed phases:
//
//  1. Split: resolve every subquery's backend and table.
//  2. Coalesce: fold joins that live on the same relational backend as the
//     main subquery into the main statement.
//  3. Compile: build one plan per standalone subquery.
//  4. Execute: run the plans, concurrently when enabled.
//  5. Merge: left-fold the joins into the main result in document order.
//  6. Shape: null-fill, evaluate selectors, sort, limit, project.
//
// ARCHITECTURE:
//
// Phases 1-3 are pure; Explain stops after them. Only Execute touches
// backends. Merge and Shape operate on in-memory tables.
//
// Folding:
// A join is folded only when both subqueries are on the same relational
// backend, the on-keys are declared columns on both sides, and neither
// side groups or aggregates. Otherwise it runs standalone and is merged
// in memory with identical semantics.
//
// CRITICAL PATTERNS:
//
// Null join keys never match. A full join appends unmatched joined rows
// after the matched ones. Sort is stable, with nulls last in either
// direction. Sort and limit happen before excluded columns are dropped.
//
// Concurrency:
// The engine holds no per-query state. Run and Explain are safe for
// concurrent use; each call owns its records.
package engine
