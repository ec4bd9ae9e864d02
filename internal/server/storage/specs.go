package storage

import (
	"database/sql"
	"time"

	"github.com/dmitrijs2005/daybook/internal/server/storage/records"
	"github.com/dmitrijs2005/daybook/internal/syncwire"
)

func entrySpec() records.TableSpec[*syncwire.EntryRow] {
	return records.TableSpec[*syncwire.EntryRow]{
		Table:       "entries",
		PayloadCols: []string{"content", "mood", "location", "tags", "attachments"},
		Values: func(r *syncwire.EntryRow) []any {
			return []any{r.Content, r.Mood, r.Location, r.Tags, r.Attachments}
		},
		Scan: func(s records.RowScanner) (*syncwire.EntryRow, error) {
			var (
				r                              syncwire.EntryRow
				content, mood, loc, tags, atts sql.NullString
				deletedAt                      sql.NullTime
			)
			if err := s.Scan(&r.ID, &content, &mood, &loc, &tags, &atts, &r.UpdatedAt, &deletedAt); err != nil {
				return nil, err
			}
			r.Content = fromNullString(content)
			r.Mood = fromNullString(mood)
			r.Location = fromNullString(loc)
			r.Tags = fromNullString(tags)
			r.Attachments = fromNullString(atts)
			r.UpdatedAt = r.UpdatedAt.UTC()
			r.DeletedAt = fromNullTime(deletedAt)
			return &r, nil
		},
	}
}

func personSpec() records.TableSpec[*syncwire.PersonRow] {
	return records.TableSpec[*syncwire.PersonRow]{
		Table:       "people",
		PayloadCols: []string{"name", "notes", "relations", "photos"},
		Values: func(r *syncwire.PersonRow) []any {
			return []any{r.Name, r.Notes, r.Relations, r.Photos}
		},
		Scan: func(s records.RowScanner) (*syncwire.PersonRow, error) {
			var (
				r                         syncwire.PersonRow
				name, notes, rels, photos sql.NullString
				deletedAt                 sql.NullTime
			)
			if err := s.Scan(&r.ID, &name, &notes, &rels, &photos, &r.UpdatedAt, &deletedAt); err != nil {
				return nil, err
			}
			r.Name = fromNullString(name)
			r.Notes = fromNullString(notes)
			r.Relations = fromNullString(rels)
			r.Photos = fromNullString(photos)
			r.UpdatedAt = r.UpdatedAt.UTC()
			r.DeletedAt = fromNullTime(deletedAt)
			return &r, nil
		},
	}
}

func sessionSpec() records.TableSpec[*syncwire.SessionRow] {
	return records.TableSpec[*syncwire.SessionRow]{
		Table:       "sessions",
		PayloadCols: []string{"title", "transcript", "participants", "attachments"},
		Values: func(r *syncwire.SessionRow) []any {
			return []any{r.Title, r.Transcript, r.Participants, r.Attachments}
		},
		Scan: func(s records.RowScanner) (*syncwire.SessionRow, error) {
			var (
				r                              syncwire.SessionRow
				title, transcript, parts, atts sql.NullString
				deletedAt                      sql.NullTime
			)
			if err := s.Scan(&r.ID, &title, &transcript, &parts, &atts, &r.UpdatedAt, &deletedAt); err != nil {
				return nil, err
			}
			r.Title = fromNullString(title)
			r.Transcript = fromNullString(transcript)
			r.Participants = fromNullString(parts)
			r.Attachments = fromNullString(atts)
			r.UpdatedAt = r.UpdatedAt.UTC()
			r.DeletedAt = fromNullTime(deletedAt)
			return &r, nil
		},
	}
}

func cloneEntry(r *syncwire.EntryRow) *syncwire.EntryRow {
	c := *r
	c.Content = cloneString(r.Content)
	c.Mood = cloneString(r.Mood)
	c.Location = cloneString(r.Location)
	c.Tags = cloneString(r.Tags)
	c.Attachments = cloneString(r.Attachments)
	c.DeletedAt = cloneTime(r.DeletedAt)
	return &c
}

func clonePerson(r *syncwire.PersonRow) *syncwire.PersonRow {
	c := *r
	c.Name = cloneString(r.Name)
	c.Notes = cloneString(r.Notes)
	c.Relations = cloneString(r.Relations)
	c.Photos = cloneString(r.Photos)
	c.DeletedAt = cloneTime(r.DeletedAt)
	return &c
}

func cloneSession(r *syncwire.SessionRow) *syncwire.SessionRow {
	c := *r
	c.Title = cloneString(r.Title)
	c.Transcript = cloneString(r.Transcript)
	c.Participants = cloneString(r.Participants)
	c.Attachments = cloneString(r.Attachments)
	c.DeletedAt = cloneTime(r.DeletedAt)
	return &c
}

func fromNullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func fromNullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
