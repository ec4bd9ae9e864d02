// Package syncwire defines the wire schema spoken between the client and the
// sync service: per-collection rows, change sets, tombstones, and conflicts.
//
// Payload fields are *string because they are opaque on the wire: either
// plaintext or "enc:" tokens produced by the crypto codec. Identity and sync
// bookkeeping (id, updated_at, deleted_at) are never encrypted.
package syncwire

import (
	"time"

	"github.com/dmitrijs2005/daybook/internal/cryptox"
)

// Row is implemented by every per-collection wire row.
type Row interface {
	RowID() string
	RowUpdatedAt() time.Time
	RowDeletedAt() *time.Time

	// EncryptFields and DecryptFields run the codec over every payload
	// field, leaving id/updated_at/deleted_at alone.
	EncryptFields(c *cryptox.Codec) error
	DecryptFields(c *cryptox.Codec) error
}

// EntryRow is the wire form of a journal entry.
type EntryRow struct {
	ID          string     `json:"id" validate:"required"`
	Content     *string    `json:"content,omitempty"`
	Mood        *string    `json:"mood,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Tags        *string    `json:"tags,omitempty"`
	Attachments *string    `json:"attachments,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at" validate:"required"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

func (r *EntryRow) RowID() string            { return r.ID }
func (r *EntryRow) RowUpdatedAt() time.Time  { return r.UpdatedAt }
func (r *EntryRow) RowDeletedAt() *time.Time { return r.DeletedAt }

func (r *EntryRow) EncryptFields(c *cryptox.Codec) error {
	return mapFields(c.EncryptField, &r.Content, &r.Mood, &r.Location, &r.Tags, &r.Attachments)
}

func (r *EntryRow) DecryptFields(c *cryptox.Codec) error {
	return mapFields(c.DecryptField, &r.Content, &r.Mood, &r.Location, &r.Tags, &r.Attachments)
}

// PersonRow is the wire form of a contact.
type PersonRow struct {
	ID        string     `json:"id" validate:"required"`
	Name      *string    `json:"name,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	Relations *string    `json:"relations,omitempty"`
	Photos    *string    `json:"photos,omitempty"`
	UpdatedAt time.Time  `json:"updated_at" validate:"required"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func (r *PersonRow) RowID() string            { return r.ID }
func (r *PersonRow) RowUpdatedAt() time.Time  { return r.UpdatedAt }
func (r *PersonRow) RowDeletedAt() *time.Time { return r.DeletedAt }

func (r *PersonRow) EncryptFields(c *cryptox.Codec) error {
	return mapFields(c.EncryptField, &r.Name, &r.Notes, &r.Relations, &r.Photos)
}

func (r *PersonRow) DecryptFields(c *cryptox.Codec) error {
	return mapFields(c.DecryptField, &r.Name, &r.Notes, &r.Relations, &r.Photos)
}

// SessionRow is the wire form of an imported chat session.
type SessionRow struct {
	ID           string     `json:"id" validate:"required"`
	Title        *string    `json:"title,omitempty"`
	Transcript   *string    `json:"transcript,omitempty"`
	Participants *string    `json:"participants,omitempty"`
	Attachments  *string    `json:"attachments,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at" validate:"required"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

func (r *SessionRow) RowID() string            { return r.ID }
func (r *SessionRow) RowUpdatedAt() time.Time  { return r.UpdatedAt }
func (r *SessionRow) RowDeletedAt() *time.Time { return r.DeletedAt }

func (r *SessionRow) EncryptFields(c *cryptox.Codec) error {
	return mapFields(c.EncryptField, &r.Title, &r.Transcript, &r.Participants, &r.Attachments)
}

func (r *SessionRow) DecryptFields(c *cryptox.Codec) error {
	return mapFields(c.DecryptField, &r.Title, &r.Transcript, &r.Participants, &r.Attachments)
}

func mapFields(fn func(*string) (*string, error), fields ...**string) error {
	for _, f := range fields {
		v, err := fn(*f)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}

// Tombstone propagates a deletion so other devices delete instead of
// resurrecting the record. Key is the deleted record's id; ID is the client's
// local bookkeeping key and is ignored by the server.
type Tombstone struct {
	ID        string    `json:"id,omitempty"`
	Store     string    `json:"store" validate:"required,oneof=entries people sessions"`
	Key       string    `json:"key" validate:"required"`
	DeletedAt time.Time `json:"deleted_at" validate:"required"`
}

// ChangeSet groups pushed rows and deletions per collection.
type ChangeSet struct {
	Entries  []*EntryRow   `json:"entries,omitempty"`
	People   []*PersonRow  `json:"people,omitempty"`
	Sessions []*SessionRow `json:"sessions,omitempty"`
	Deletes  []Tombstone   `json:"deletes,omitempty"`
}

// Empty reports whether the change set carries nothing.
func (cs *ChangeSet) Empty() bool {
	return cs == nil ||
		len(cs.Entries) == 0 && len(cs.People) == 0 && len(cs.Sessions) == 0 && len(cs.Deletes) == 0
}

// SyncRequest is the body of POST /sync. Force carries records the client
// re-pushes after a human resolved a conflict in favor of the local copy; the
// server applies it without the last-write-wins guard.
type SyncRequest struct {
	LastSync *time.Time `json:"lastSync"`
	Updates  *ChangeSet `json:"updates,omitempty"`
	Force    *ChangeSet `json:"force,omitempty"`
}

// Conflict reports a rejected push: the remote side was strictly newer.
// Remote carries the decrypted authoritative row so the client can show a
// local/remote diff.
type Conflict[R any] struct {
	ID     string `json:"id"`
	Remote R      `json:"remote"`
}

// RowSet is the remote delta, grouped per collection.
type RowSet struct {
	Entries  []*EntryRow   `json:"entries"`
	People   []*PersonRow  `json:"people"`
	Sessions []*SessionRow `json:"sessions"`
}

// ConflictSet groups conflicts per collection. Deletion conflicts appear in
// the list of the collection the tombstone targeted.
type ConflictSet struct {
	Entries  []Conflict[*EntryRow]   `json:"entries"`
	People   []Conflict[*PersonRow]  `json:"people"`
	Sessions []Conflict[*SessionRow] `json:"sessions"`
}

// SyncResponse is the body of a successful POST /sync.
type SyncResponse struct {
	ServerTime time.Time   `json:"serverTime"`
	Updates    RowSet      `json:"updates"`
	Conflicts  ConflictSet `json:"conflicts"`
}

// NewSyncResponse returns a response with empty (non-nil) collections so the
// JSON always contains the full shape.
func NewSyncResponse() *SyncResponse {
	return &SyncResponse{
		Updates: RowSet{
			Entries:  []*EntryRow{},
			People:   []*PersonRow{},
			Sessions: []*SessionRow{},
		},
		Conflicts: ConflictSet{
			Entries:  []Conflict[*EntryRow]{},
			People:   []Conflict[*PersonRow]{},
			Sessions: []Conflict[*SessionRow]{},
		},
	}
}

// ProbeResponse is the body of GET /sync.
type ProbeResponse struct {
	OK         bool      `json:"ok"`
	ServerTime time.Time `json:"serverTime"`
}
