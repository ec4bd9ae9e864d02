package storage

import (
	"database/sql"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/dbx"
	"github.com/dmitrijs2005/daybook/internal/syncwire"
)

func entriesTable(db dbx.DBTX) *Table[*models.Entry] {
	return newTable(db, tableSpec[*models.Entry]{
		name:        common.CollectionEntries,
		payloadCols: []string{"content", "mood", "latitude", "longitude", "tags", "attachments"},
		values: func(e *models.Entry) ([]any, error) {
			tags, err := syncwire.FlattenSet(e.Tags)
			if err != nil {
				return nil, err
			}
			atts, err := syncwire.EncodeAttachments(e.Attachments)
			if err != nil {
				return nil, err
			}
			return []any{e.Content, e.Mood, e.Latitude, e.Longitude, tags, atts}, nil
		},
		scan: func(s rowScanner) (*models.Entry, error) {
			var (
				e          models.Entry
				mood       sql.NullFloat64
				lat, lon   sql.NullFloat64
				tags, atts sql.NullString
			)
			var updatedAt string
			var deletedAt sql.NullString
			var status string
			if err := s.Scan(&e.ID, &e.Content, &mood, &lat, &lon, &tags, &atts,
				&updatedAt, &deletedAt, &status); err != nil {
				return nil, err
			}
			e.Mood = nullableFloat(mood)
			e.Latitude = nullableFloat(lat)
			e.Longitude = nullableFloat(lon)

			var err error
			if e.Tags, err = syncwire.ExplodeList(nullableString(tags)); err != nil {
				return nil, err
			}
			if e.Attachments, err = syncwire.DecodeAttachments(nullableString(atts)); err != nil {
				return nil, err
			}
			if err := scanMeta(&e.UpdatedAt, &e.DeletedAt, updatedAt, deletedAt); err != nil {
				return nil, err
			}
			e.SyncStatus = models.SyncStatus(status)
			return &e, nil
		},
	})
}

func peopleTable(db dbx.DBTX) *Table[*models.Person] {
	return newTable(db, tableSpec[*models.Person]{
		name:        common.CollectionPeople,
		payloadCols: []string{"name", "notes", "relations", "photos"},
		values: func(p *models.Person) ([]any, error) {
			// relation ids are a sequence: order matters
			rels, err := syncwire.FlattenSeq(p.Relations)
			if err != nil {
				return nil, err
			}
			photos, err := syncwire.EncodeAttachments(p.Photos)
			if err != nil {
				return nil, err
			}
			return []any{p.Name, p.Notes, rels, photos}, nil
		},
		scan: func(s rowScanner) (*models.Person, error) {
			var (
				p            models.Person
				rels, photos sql.NullString
			)
			var updatedAt string
			var deletedAt sql.NullString
			var status string
			if err := s.Scan(&p.ID, &p.Name, &p.Notes, &rels, &photos,
				&updatedAt, &deletedAt, &status); err != nil {
				return nil, err
			}

			var err error
			if p.Relations, err = syncwire.ExplodeList(nullableString(rels)); err != nil {
				return nil, err
			}
			if p.Photos, err = syncwire.DecodeAttachments(nullableString(photos)); err != nil {
				return nil, err
			}
			if err := scanMeta(&p.UpdatedAt, &p.DeletedAt, updatedAt, deletedAt); err != nil {
				return nil, err
			}
			p.SyncStatus = models.SyncStatus(status)
			return &p, nil
		},
	})
}

func sessionsTable(db dbx.DBTX) *Table[*models.Session] {
	return newTable(db, tableSpec[*models.Session]{
		name:        common.CollectionSessions,
		payloadCols: []string{"title", "transcript", "participants", "attachments"},
		values: func(s *models.Session) ([]any, error) {
			parts, err := syncwire.FlattenSet(s.Participants)
			if err != nil {
				return nil, err
			}
			atts, err := syncwire.EncodeAttachments(s.Attachments)
			if err != nil {
				return nil, err
			}
			return []any{s.Title, s.Transcript, parts, atts}, nil
		},
		scan: func(sc rowScanner) (*models.Session, error) {
			var (
				s           models.Session
				parts, atts sql.NullString
			)
			var updatedAt string
			var deletedAt sql.NullString
			var status string
			if err := sc.Scan(&s.ID, &s.Title, &s.Transcript, &parts, &atts,
				&updatedAt, &deletedAt, &status); err != nil {
				return nil, err
			}

			var err error
			if s.Participants, err = syncwire.ExplodeList(nullableString(parts)); err != nil {
				return nil, err
			}
			if s.Attachments, err = syncwire.DecodeAttachments(nullableString(atts)); err != nil {
				return nil, err
			}
			if err := scanMeta(&s.UpdatedAt, &s.DeletedAt, updatedAt, deletedAt); err != nil {
				return nil, err
			}
			s.SyncStatus = models.SyncStatus(status)
			return &s, nil
		},
	})
}

func scanMeta(updatedAt *time.Time, deletedAt **time.Time, rawUpdated string, rawDeleted sql.NullString) error {
	t, err := parseTime(rawUpdated)
	if err != nil {
		return err
	}
	*updatedAt = t

	if rawDeleted.Valid {
		d, err := parseTime(rawDeleted.String)
		if err != nil {
			return err
		}
		*deletedAt = &d
	}
	return nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
