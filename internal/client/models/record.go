// Package models defines the client's plaintext record types and their sync
// bookkeeping fields.
package models

import (
	"time"

	"github.com/dmitrijs2005/daybook/internal/syncwire"
	"github.com/google/uuid"
)

// SyncStatus tracks whether the local copy is ahead of the remote store.
type SyncStatus string

const (
	StatusDirty  SyncStatus = "dirty"
	StatusSynced SyncStatus = "synced"
)

// Entry is a journal entry.
type Entry struct {
	ID          string
	Content     string
	Mood        *float64
	Latitude    *float64
	Longitude   *float64
	Tags        []string
	Attachments []syncwire.Attachment
	UpdatedAt   time.Time
	DeletedAt   *time.Time
	SyncStatus  SyncStatus
}

func NewEntry(content string) *Entry {
	return &Entry{
		ID:         uuid.NewString(),
		Content:    content,
		UpdatedAt:  time.Now().UTC(),
		SyncStatus: StatusDirty,
	}
}

func (e *Entry) GetID() string             { return e.ID }
func (e *Entry) GetUpdatedAt() time.Time   { return e.UpdatedAt }
func (e *Entry) GetDeletedAt() *time.Time  { return e.DeletedAt }
func (e *Entry) GetStatus() SyncStatus     { return e.SyncStatus }

// Touch marks a local mutation: updated_at strictly increases on every write
// to the same record, even when the wall clock has not moved, and the record
// becomes dirty again.
func (e *Entry) Touch() {
	e.UpdatedAt = touch(e.UpdatedAt)
	e.SyncStatus = StatusDirty
}

// Person is a contact.
type Person struct {
	ID         string
	Name       string
	Notes      string
	Relations  []string
	Photos     []syncwire.Attachment
	UpdatedAt  time.Time
	DeletedAt  *time.Time
	SyncStatus SyncStatus
}

func NewPerson(name string) *Person {
	return &Person{
		ID:         uuid.NewString(),
		Name:       name,
		UpdatedAt:  time.Now().UTC(),
		SyncStatus: StatusDirty,
	}
}

func (p *Person) GetID() string            { return p.ID }
func (p *Person) GetUpdatedAt() time.Time  { return p.UpdatedAt }
func (p *Person) GetDeletedAt() *time.Time { return p.DeletedAt }
func (p *Person) GetStatus() SyncStatus    { return p.SyncStatus }

func (p *Person) Touch() {
	p.UpdatedAt = touch(p.UpdatedAt)
	p.SyncStatus = StatusDirty
}

// Session is an imported chat session.
type Session struct {
	ID           string
	Title        string
	Transcript   string
	Participants []string
	Attachments  []syncwire.Attachment
	UpdatedAt    time.Time
	DeletedAt    *time.Time
	SyncStatus   SyncStatus
}

func NewSession(title string) *Session {
	return &Session{
		ID:         uuid.NewString(),
		Title:      title,
		UpdatedAt:  time.Now().UTC(),
		SyncStatus: StatusDirty,
	}
}

func (s *Session) GetID() string            { return s.ID }
func (s *Session) GetUpdatedAt() time.Time  { return s.UpdatedAt }
func (s *Session) GetDeletedAt() *time.Time { return s.DeletedAt }
func (s *Session) GetStatus() SyncStatus    { return s.SyncStatus }

func (s *Session) Touch() {
	s.UpdatedAt = touch(s.UpdatedAt)
	s.SyncStatus = StatusDirty
}

// Record is the common surface the generic storage layer needs.
type Record interface {
	GetID() string
	GetUpdatedAt() time.Time
	GetDeletedAt() *time.Time
	GetStatus() SyncStatus
}

// Tombstone records a local deletion until the server confirms it, or until a
// conflict naming it is resolved. ID is a local bookkeeping key; Key is the
// deleted record's id.
type Tombstone struct {
	ID         string
	Store      string
	Key        string
	DeletedAt  time.Time
	SyncStatus SyncStatus
}

func NewTombstone(store, key string, deletedAt time.Time) *Tombstone {
	return &Tombstone{
		ID:         uuid.NewString(),
		Store:      store,
		Key:        key,
		DeletedAt:  deletedAt.UTC(),
		SyncStatus: StatusDirty,
	}
}

func touch(prev time.Time) time.Time {
	now := time.Now().UTC()
	if !now.After(prev) {
		now = prev.Add(time.Millisecond)
	}
	return now
}
