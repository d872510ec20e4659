package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrInvalidRecord is returned when a record is missing a field every record needs.
var ErrInvalidRecord = errors.New("invalid record")

// Kind names one of the record types.
type Kind string

const (
	KindGroup          Kind = "group"
	KindTask           Kind = "task"
	KindCountermeasure Kind = "countermeasure"
	KindMemo           Kind = "memo"
	KindTarget         Kind = "target"
	KindNote           Kind = "note"
)

// Kinds lists every kind in reconciliation order.
func Kinds() []Kind {
	return []Kind{KindGroup, KindTask, KindCountermeasure, KindMemo, KindTarget, KindNote}
}

func (k Kind) String() string { return string(k) }

// Record is implemented by pointers to the six record types.
type Record interface {
	Kind() Kind
	RecordID() string
	SetRecordID(id string)
	Owner() string
	SetOwner(owner string)
	Deleted() bool
	SetDeleted(deleted bool)
	MarkDeleted(now time.Time)
	Created() time.Time
	Modified() time.Time
	Touch(now time.Time)
}

// Base carries the fields shared by every record. Timestamps are managed by
// matchnote, never by gorm, so that a record copied from the remote keeps the
// updated_at it was written with.
type Base struct {
	OwnerID   string    `gorm:"index;not null" json:"owner_id"`
	IsDeleted bool      `gorm:"index;not null" json:"is_deleted"`
	CreatedAt time.Time `gorm:"autoCreateTime:false;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false;not null" json:"updated_at"`
}

func (b *Base) Owner() string         { return b.OwnerID }
func (b *Base) SetOwner(owner string) { b.OwnerID = owner }
func (b *Base) Deleted() bool         { return b.IsDeleted }
func (b *Base) Created() time.Time    { return b.CreatedAt }
func (b *Base) SetDeleted(del bool)   { b.IsDeleted = del }
func (b *Base) Modified() time.Time   { return b.UpdatedAt }

// Touch records a mutation at now. The creation time is set on first touch.
func (b *Base) Touch(now time.Time) {
	now = Truncate(now)
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// MarkDeleted flags the record as deleted at now.
func (b *Base) MarkDeleted(now time.Time) {
	b.IsDeleted = true
	b.Touch(now)
}

// AfterFind normalizes timestamps read back from a database driver.
func (b *Base) AfterFind(*gorm.DB) error {
	b.CreatedAt = Truncate(b.CreatedAt)
	b.UpdatedAt = Truncate(b.UpdatedAt)
	return nil
}

// Now returns the current time at the precision records are stored with.
func Now() time.Time {
	return Truncate(time.Now())
}

// Truncate converts t to UTC with millisecond precision.
func Truncate(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC().Truncate(time.Millisecond)
}

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// DocumentID is the key of a record in the remote store. Records of different
// owners never share a document even when their ids collide.
func DocumentID(r Record) string {
	return r.Owner() + "_" + r.RecordID()
}

// Validate reports whether r carries the fields every record needs.
func Validate(r Record) error {
	switch {
	case r.RecordID() == "":
		return fmt.Errorf("%w: %s without id", ErrInvalidRecord, r.Kind())
	case r.Owner() == "":
		return fmt.Errorf("%w: %s %s without owner", ErrInvalidRecord, r.Kind(), r.RecordID())
	case r.Modified().IsZero():
		return fmt.Errorf("%w: %s %s without updated_at", ErrInvalidRecord, r.Kind(), r.RecordID())
	}
	return nil
}

// Newer reports whether a was modified strictly after b.
func Newer(a, b Record) bool {
	return a.Modified().After(b.Modified())
}
