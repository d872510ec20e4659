// Package models defines the records kept by matchnote.
//
// Six kinds of record exist, and every one of them is flat: no nested
// documents, no blobs, only scalar fields plus string references to a parent.
//
//   - [Group]: a category of problems the athlete is working on, ordered and colour tagged
//   - [Task]: a concrete problem inside a group, with its suspected cause
//   - [Countermeasure]: an approach the athlete tries against a task
//   - [Memo]: an observation about a countermeasure, written as part of a note
//   - [Target]: a yearly or monthly goal
//   - [Note]: a free, practice or tournament journal entry
//
// # Record interface
//
// All kinds implement [Record], which exposes the fields shared by every kind
// (id, owner, soft-delete flag and timestamps). Behaviour that differs per kind,
// such as the remote collection name or which children a soft delete cascades
// to, lives in the kind's [Descriptor] and is looked up with [Describe].
//
// # Cascade
//
// Soft-deleting a record soft-deletes everything reachable through
// [Descriptor.Children]:
//
//	Group ─▶ Task ─▶ Countermeasure ─▶ Memo
//	Note  ─────────────────────────────▶ Memo
//
// # Timestamps
//
// updated_at decides every conflict between the local and the remote copy of a
// record. [Now] truncates to milliseconds in UTC so that a record survives a
// trip through SQLite, SurrealDB or a JSON document without changing its
// timestamp.
package models
