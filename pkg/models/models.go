package models

import (
	"time"

	"gorm.io/gorm"
)

// Color is the colour tag shown next to a group.
type Color int

const (
	ColorRed Color = iota
	ColorPink
	ColorOrange
	ColorYellow
	ColorGreen
	ColorBlue
	ColorPurple
	ColorGray
)

// TargetType distinguishes yearly goals from monthly ones.
type TargetType int

const (
	TargetYear TargetType = iota
	TargetMonth
)

// NoteType is the kind of journal entry a note is.
type NoteType int

const (
	NoteFree NoteType = iota
	NotePractice
	NoteTournament
)

// Weather recorded for a practice or tournament.
type Weather int

const (
	WeatherSunny Weather = iota
	WeatherCloudy
	WeatherRainy
)

// Group is a category of problems the athlete is working on.
type Group struct {
	ID    string `gorm:"column:id;primaryKey" json:"group_id"`
	Title string `gorm:"not null" json:"title"`
	Color Color  `gorm:"not null" json:"color"`
	Order int    `gorm:"column:sort_order;not null" json:"order"`
	Base
}

// Task is a problem inside a group.
type Task struct {
	ID         string `gorm:"column:id;primaryKey" json:"task_id"`
	GroupID    string `gorm:"index;not null" json:"group_id"`
	Title      string `gorm:"not null" json:"title"`
	Cause      string `json:"cause"`
	Order      int    `gorm:"column:sort_order;not null" json:"order"`
	IsComplete bool   `gorm:"not null" json:"is_complete"`
	Base
}

// Countermeasure is an approach tried against a task.
type Countermeasure struct {
	ID     string `gorm:"column:id;primaryKey" json:"countermeasure_id"`
	TaskID string `gorm:"index;not null" json:"task_id"`
	Title  string `gorm:"not null" json:"title"`
	Order  int    `gorm:"column:sort_order;not null" json:"order"`
	Base
}

// Memo is an observation about a countermeasure, written as part of a note.
type Memo struct {
	ID               string `gorm:"column:id;primaryKey" json:"memo_id"`
	CountermeasureID string `gorm:"index;not null" json:"countermeasure_id"`
	NoteID           string `gorm:"index;not null" json:"note_id"`
	Detail           string `json:"detail"`
	Base
}

// Target is a yearly or monthly goal.
type Target struct {
	ID    string     `gorm:"column:id;primaryKey" json:"target_id"`
	Title string     `gorm:"not null" json:"title"`
	Year  int        `gorm:"not null" json:"year"`
	Month int        `gorm:"not null" json:"month"`
	Type  TargetType `gorm:"column:target_type;not null" json:"type"`
	Base
}

// Note is a journal entry. Which of the free-text fields are used depends on Type.
type Note struct {
	ID            string    `gorm:"column:id;primaryKey" json:"note_id"`
	Type          NoteType  `gorm:"column:note_type;not null" json:"type"`
	Title         string    `json:"title"`
	Date          time.Time `json:"date"`
	Weather       Weather   `gorm:"not null" json:"weather"`
	Temperature   int       `gorm:"not null" json:"temperature"`
	Condition     string    `json:"condition"`
	Purpose       string    `json:"purpose"`
	Detail        string    `json:"detail"`
	Target        string    `json:"target"`
	Consciousness string    `json:"consciousness"`
	Result        string    `json:"result"`
	Reflection    string    `json:"reflection"`
	Base
}

func (*Group) Kind() Kind          { return KindGroup }
func (*Task) Kind() Kind           { return KindTask }
func (*Countermeasure) Kind() Kind { return KindCountermeasure }
func (*Memo) Kind() Kind           { return KindMemo }
func (*Target) Kind() Kind         { return KindTarget }
func (*Note) Kind() Kind           { return KindNote }

func (g *Group) RecordID() string          { return g.ID }
func (t *Task) RecordID() string           { return t.ID }
func (c *Countermeasure) RecordID() string { return c.ID }
func (m *Memo) RecordID() string           { return m.ID }
func (t *Target) RecordID() string         { return t.ID }
func (n *Note) RecordID() string           { return n.ID }

func (g *Group) SetRecordID(id string)          { g.ID = id }
func (t *Task) SetRecordID(id string)           { t.ID = id }
func (c *Countermeasure) SetRecordID(id string) { c.ID = id }
func (m *Memo) SetRecordID(id string)           { m.ID = id }
func (t *Target) SetRecordID(id string)         { t.ID = id }
func (n *Note) SetRecordID(id string)           { n.ID = id }

// AfterFind normalizes the note date along with the shared timestamps.
func (n *Note) AfterFind(tx *gorm.DB) error {
	n.Date = Truncate(n.Date)
	return n.Base.AfterFind(tx)
}
