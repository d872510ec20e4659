// Package matchnote is the matchnote application: a local-first training
// notebook whose records live in an on-device SQLite database and are
// reconciled with a remote document store when the device is online and
// signed in.
//
// [Main] parses a subcommand with [Parse] and runs it against an [App]:
//
//	matchnote serve                 # HTTP API plus background sync
//	matchnote sync                  # one reconciliation pass
//	matchnote migrate               # local and remote schemas
//	matchnote register <account-id> # bind anonymous records to an account
//	matchnote login <account-id>    # bind, then sync
//	matchnote logout
//	matchnote backup                # CBOR snapshot to object storage
//	matchnote restore [key]         # merge a snapshot back
//
// Configuration comes from MATCHNOTE_* environment variables (see [Config]),
// overridden by flags.
package matchnote
