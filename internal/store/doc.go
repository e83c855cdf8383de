// Package store keeps a SQLite journal of assembled test plans.
//
// Every successful assembly can be recorded as one row holding the run id,
// the test-plan path, the package name, the canonical plan JSON and its
// digest. The journal is append-only; rows are never updated.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Listing is ordered by the insertion sequence, newest first, never by the
// recorded timestamp.
package store
