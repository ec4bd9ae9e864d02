package syncwire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Attachment kinds. A blob embeds raw bytes inline; a ref points at content
// stored elsewhere and is passed through untouched.
const (
	AttachmentBlob = "blob"
	AttachmentRef  = "ref"
)

// Attachment is a decoded binary attachment.
type Attachment struct {
	Kind     string
	MimeType string
	Data     []byte
	Ref      string
}

// BlobAttachment builds an inline attachment.
func BlobAttachment(mimeType string, data []byte) Attachment {
	return Attachment{Kind: AttachmentBlob, MimeType: mimeType, Data: data}
}

// RefAttachment builds an external-reference attachment.
func RefAttachment(ref string) Attachment {
	return Attachment{Kind: AttachmentRef, Ref: ref}
}

// attachmentPayload is the self-describing serialized form:
// {kind:"blob", mimeType, data:<base64>} or {kind:"ref", value}.
type attachmentPayload struct {
	Kind     string `json:"kind"`
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
	Value    string `json:"value,omitempty"`
}

// EncodeAttachments serializes attachments as an ordered JSON sequence.
// Empty input yields nil so absent attachment containers stay absent.
func EncodeAttachments(atts []Attachment) (*string, error) {
	if len(atts) == 0 {
		return nil, nil
	}

	payloads := make([]attachmentPayload, 0, len(atts))
	for _, a := range atts {
		switch a.Kind {
		case AttachmentBlob:
			payloads = append(payloads, attachmentPayload{
				Kind:     AttachmentBlob,
				MimeType: a.MimeType,
				Data:     base64.StdEncoding.EncodeToString(a.Data),
			})
		case AttachmentRef:
			payloads = append(payloads, attachmentPayload{Kind: AttachmentRef, Value: a.Ref})
		default:
			return nil, fmt.Errorf("unknown attachment kind %q", a.Kind)
		}
	}

	b, err := json.Marshal(payloads)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

// DecodeAttachments reverses EncodeAttachments, reconstructing raw bytes for
// blob entries and passing ref entries through unchanged. Order is preserved.
func DecodeAttachments(v *string) ([]Attachment, error) {
	if v == nil || *v == "" {
		return nil, nil
	}

	var payloads []attachmentPayload
	if err := json.Unmarshal([]byte(*v), &payloads); err != nil {
		return nil, fmt.Errorf("invalid attachment container: %w", err)
	}

	atts := make([]Attachment, 0, len(payloads))
	for _, p := range payloads {
		switch p.Kind {
		case AttachmentBlob:
			data, err := base64.StdEncoding.DecodeString(p.Data)
			if err != nil {
				return nil, fmt.Errorf("invalid attachment data: %w", err)
			}
			atts = append(atts, Attachment{Kind: AttachmentBlob, MimeType: p.MimeType, Data: data})
		case AttachmentRef:
			atts = append(atts, Attachment{Kind: AttachmentRef, Ref: p.Value})
		default:
			return nil, fmt.Errorf("unknown attachment kind %q", p.Kind)
		}
	}
	return atts, nil
}
