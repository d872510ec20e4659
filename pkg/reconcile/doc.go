// Package reconcile brings the local and the remote store into agreement.
//
// Reconciliation works on one record kind at a time. Both sides are read in
// full, concurrently, and compared by record id:
//
//   - records only the device has are saved to the remote
//   - records only the remote has are written to the device
//   - records both have are compared by updated_at and the strictly newer
//     copy overwrites the older one; equal timestamps are left alone
//
// The phases run in that order and visit ids in sorted order, so a pass over
// the same input always issues the same writes. Running a second pass without
// intervening writes changes nothing.
//
// [Reconciler.ReconcileAll] visits every kind. A kind that fails is reported
// and skipped; the others still run. Cancellation is checked between kinds,
// and a cancelled pass leaves a consistent state that the next pass completes.
//
// Remote writes that fail are logged and counted but do not fail the pass:
// the record stays newer locally and is pushed again next time. Local write
// failures do fail the kind, since the local store is the copy of record.
package reconcile
