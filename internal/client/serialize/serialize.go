// Package serialize maps typed local records to and from the wire schema:
// list flattening, attachment containers, and (optionally) field encryption
// when the client is configured for end-to-end mode.
package serialize

import (
	"strconv"
	"strings"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/cryptox"
	"github.com/dmitrijs2005/daybook/internal/syncwire"
)

// Serializer converts records to wire rows and back. With a nil codec the
// rows travel as plaintext and the service encrypts them at rest; with a
// codec (derived from the same secret as the server's) the sensitive fields
// are encrypted before they leave the device.
type Serializer struct {
	codec *cryptox.Codec
}

func New(codec *cryptox.Codec) *Serializer {
	return &Serializer{codec: codec}
}

func (s *Serializer) encrypt(row syncwire.Row) error {
	if s.codec == nil {
		return nil
	}
	return row.EncryptFields(s.codec)
}

func (s *Serializer) decrypt(row syncwire.Row) error {
	if s.codec == nil {
		return nil
	}
	return row.DecryptFields(s.codec)
}

// EntryToWire flattens an entry for columnar storage and applies the codec.
func (s *Serializer) EntryToWire(e *models.Entry) (*syncwire.EntryRow, error) {
	tags, err := syncwire.FlattenSet(e.Tags)
	if err != nil {
		return nil, err
	}
	atts, err := syncwire.EncodeAttachments(e.Attachments)
	if err != nil {
		return nil, err
	}

	row := &syncwire.EntryRow{
		ID:          e.ID,
		Content:     nonEmpty(e.Content),
		Mood:        formatFloat(e.Mood),
		Location:    formatLocation(e.Latitude, e.Longitude),
		Tags:        tags,
		Attachments: atts,
		UpdatedAt:   e.UpdatedAt,
		DeletedAt:   e.DeletedAt,
	}
	if err := s.encrypt(row); err != nil {
		return nil, err
	}
	return row, nil
}

// EntryFromWire rebuilds an entry from a wire row. Numeric and coordinate
// fields are best effort: values that fail to parse come back nil.
func (s *Serializer) EntryFromWire(row *syncwire.EntryRow) (*models.Entry, error) {
	mood, err := s.moodFromWire(row.Mood)
	if err != nil {
		return nil, err
	}
	if err := s.decrypt(row); err != nil {
		return nil, err
	}

	tags, err := syncwire.ExplodeList(row.Tags)
	if err != nil {
		return nil, err
	}
	atts, err := syncwire.DecodeAttachments(row.Attachments)
	if err != nil {
		return nil, err
	}

	lat, lon := parseLocation(row.Location)
	return &models.Entry{
		ID:          row.ID,
		Content:     orEmpty(row.Content),
		Mood:        mood,
		Latitude:    lat,
		Longitude:   lon,
		Tags:        tags,
		Attachments: atts,
		UpdatedAt:   row.UpdatedAt,
		DeletedAt:   row.DeletedAt,
	}, nil
}

func (s *Serializer) PersonToWire(p *models.Person) (*syncwire.PersonRow, error) {
	rels, err := syncwire.FlattenSeq(p.Relations)
	if err != nil {
		return nil, err
	}
	photos, err := syncwire.EncodeAttachments(p.Photos)
	if err != nil {
		return nil, err
	}

	row := &syncwire.PersonRow{
		ID:        p.ID,
		Name:      nonEmpty(p.Name),
		Notes:     nonEmpty(p.Notes),
		Relations: rels,
		Photos:    photos,
		UpdatedAt: p.UpdatedAt,
		DeletedAt: p.DeletedAt,
	}
	if err := s.encrypt(row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *Serializer) PersonFromWire(row *syncwire.PersonRow) (*models.Person, error) {
	if err := s.decrypt(row); err != nil {
		return nil, err
	}

	rels, err := syncwire.ExplodeList(row.Relations)
	if err != nil {
		return nil, err
	}
	photos, err := syncwire.DecodeAttachments(row.Photos)
	if err != nil {
		return nil, err
	}

	return &models.Person{
		ID:        row.ID,
		Name:      orEmpty(row.Name),
		Notes:     orEmpty(row.Notes),
		Relations: rels,
		Photos:    photos,
		UpdatedAt: row.UpdatedAt,
		DeletedAt: row.DeletedAt,
	}, nil
}

func (s *Serializer) SessionToWire(sess *models.Session) (*syncwire.SessionRow, error) {
	parts, err := syncwire.FlattenSet(sess.Participants)
	if err != nil {
		return nil, err
	}
	atts, err := syncwire.EncodeAttachments(sess.Attachments)
	if err != nil {
		return nil, err
	}

	row := &syncwire.SessionRow{
		ID:           sess.ID,
		Title:        nonEmpty(sess.Title),
		Transcript:   nonEmpty(sess.Transcript),
		Participants: parts,
		Attachments:  atts,
		UpdatedAt:    sess.UpdatedAt,
		DeletedAt:    sess.DeletedAt,
	}
	if err := s.encrypt(row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *Serializer) SessionFromWire(row *syncwire.SessionRow) (*models.Session, error) {
	if err := s.decrypt(row); err != nil {
		return nil, err
	}

	parts, err := syncwire.ExplodeList(row.Participants)
	if err != nil {
		return nil, err
	}
	atts, err := syncwire.DecodeAttachments(row.Attachments)
	if err != nil {
		return nil, err
	}

	return &models.Session{
		ID:           row.ID,
		Title:        orEmpty(row.Title),
		Transcript:   orEmpty(row.Transcript),
		Participants: parts,
		Attachments:  atts,
		UpdatedAt:    row.UpdatedAt,
		DeletedAt:    row.DeletedAt,
	}, nil
}

// moodFromWire decodes the numeric mood. With a codec the value is still a
// token at this point, so tamper failures hard-fail while unparseable
// plaintext comes back nil.
func (s *Serializer) moodFromWire(v *string) (*float64, error) {
	if s.codec != nil {
		return s.codec.DecryptNumber(v)
	}
	return parseFloat(v), nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatFloat(f *float64) *string {
	if f == nil {
		return nil
	}
	s := strconv.FormatFloat(*f, 'f', -1, 64)
	return &s
}

func parseFloat(s *string) *float64 {
	if s == nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
	if err != nil {
		return nil
	}
	return &f
}

// formatLocation renders coordinates as "lat,lon". Both must be present.
func formatLocation(lat, lon *float64) *string {
	if lat == nil || lon == nil {
		return nil
	}
	s := strconv.FormatFloat(*lat, 'f', -1, 64) + "," + strconv.FormatFloat(*lon, 'f', -1, 64)
	return &s
}

func parseLocation(s *string) (*float64, *float64) {
	if s == nil {
		return nil, nil
	}
	parts := strings.SplitN(*s, ",", 2)
	if len(parts) != 2 {
		return nil, nil
	}
	lat := parseFloat(&parts[0])
	lon := parseFloat(&parts[1])
	if lat == nil || lon == nil {
		return nil, nil
	}
	return lat, lon
}
