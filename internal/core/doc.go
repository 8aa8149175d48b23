// Package core runs spreadsheet reconciliation against the document store.
//
// It wires the pure engine in package inventory to a [Store]: it keeps the
// current item [Snapshot] fresh from the store's live subscription, plans
// imports against it, and writes the planned operations through the batch
// [Executor]. It can be used by the HTTP server, the CLI or tests without
// modification.
//
// # Import flow
//
//  1. [Service.ReconcileContextImport] or [Service.ReconcileCatalogImport] takes the import slot
//  2. The snapshot is used as-is when fresh, otherwise the collection is pulled from the store
//  3. The planner folds rows into create/update operations
//  4. The executor commits them in chunks, in order, stopping at the first failed chunk
//  5. History is recorded for committed user-origin operations
//
// # Partial failure
//
// Chunks already committed stay committed. The returned [ImportResult]
// reports applied and not-attempted rows, and the error is an
// [*ExternalStoreError] naming the failed chunk.
//
// # Error codes
//
// Technical errors are mapped to user messages with [MapError]:
//
//   - STORE001-STORE004: document store errors
//   - IMP001-IMP005: import errors (busy, invalid target, file problems)
//   - CTX001-CTX002: context maintenance errors
//   - REQ001-REQ002: cancelled or timed out requests
package core
