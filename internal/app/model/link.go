package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RecordKind discriminates the two kinds of short-link records.
type RecordKind string

const (
	KindLink RecordKind = "link"
	KindList RecordKind = "list"
)

// ErrInvalidRecord is returned when a stored envelope does not match its kind.
var ErrInvalidRecord = errors.New("invalid link record")

// LinkRecord describes a single shared file.
type LinkRecord struct {
	Code         string     `json:"code"`
	RemoteFileID string     `json:"remote_file_id"`
	DisplayName  string     `json:"display_name"`
	OwnerID      string     `json:"owner_id"`
	Passcode     *string    `json:"passcode,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	SizeBytes    int64      `json:"size_bytes"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ListEntry is the snapshot of a member file captured when a list is created.
type ListEntry struct {
	Code         string     `json:"code"`
	RemoteFileID string     `json:"remote_file_id"`
	DisplayName  string     `json:"display_name"`
	OwnerID      string     `json:"owner_id"`
	SizeBytes    int64      `json:"size_bytes"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// ListRecord describes an ordered collection of shared files behind one code.
type ListRecord struct {
	Code      string      `json:"code"`
	OwnerID   string      `json:"owner_id"`
	Files     []ListEntry `json:"files"`
	Passcode  *string     `json:"passcode,omitempty"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// EntryFromLink snapshots a LinkRecord for inclusion in a list.
func EntryFromLink(link *LinkRecord) ListEntry {
	return ListEntry{
		Code:         link.Code,
		RemoteFileID: link.RemoteFileID,
		DisplayName:  link.DisplayName,
		OwnerID:      link.OwnerID,
		SizeBytes:    link.SizeBytes,
		ExpiresAt:    link.ExpiresAt,
	}
}

// Record is the tagged union stored in the link registry.
type Record struct {
	Kind RecordKind
	Link *LinkRecord
	List *ListRecord
}

// NewLinkRecord wraps a file link.
func NewLinkRecord(link *LinkRecord) *Record {
	return &Record{Kind: KindLink, Link: link}
}

// NewListRecord wraps a list.
func NewListRecord(list *ListRecord) *Record {
	return &Record{Kind: KindList, List: list}
}

// Code returns the short code of the wrapped record.
func (r *Record) Code() string {
	switch r.Kind {
	case KindLink:
		return r.Link.Code
	case KindList:
		return r.List.Code
	}
	return ""
}

// OwnerID returns the owner of the wrapped record.
func (r *Record) OwnerID() string {
	switch r.Kind {
	case KindLink:
		return r.Link.OwnerID
	case KindList:
		return r.List.OwnerID
	}
	return ""
}

// Passcode returns the stored passcode, or "" when the record is public.
func (r *Record) Passcode() string {
	var p *string
	switch r.Kind {
	case KindLink:
		p = r.Link.Passcode
	case KindList:
		p = r.List.Passcode
	}
	if p == nil {
		return ""
	}
	return *p
}

// ExpiresAt returns the application-level expiry, nil when the record never expires.
func (r *Record) ExpiresAt() *time.Time {
	switch r.Kind {
	case KindLink:
		return r.Link.ExpiresAt
	case KindList:
		return r.List.ExpiresAt
	}
	return nil
}

// SetProtection replaces passcode and expiry on the wrapped record.
func (r *Record) SetProtection(passcode *string, expiresAt *time.Time) {
	switch r.Kind {
	case KindLink:
		r.Link.Passcode = passcode
		r.Link.ExpiresAt = expiresAt
	case KindList:
		r.List.Passcode = passcode
		r.List.ExpiresAt = expiresAt
	}
}

type recordEnvelope struct {
	Kind RecordKind  `json:"kind"`
	Link *LinkRecord `json:"link,omitempty"`
	List *ListRecord `json:"list,omitempty"`
}

// MarshalJSON encodes the record as a kind-tagged envelope.
func (r Record) MarshalJSON() ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(recordEnvelope{Kind: r.Kind, Link: r.Link, List: r.List})
}

// UnmarshalJSON decodes a kind-tagged envelope and checks the discriminant.
func (r *Record) UnmarshalJSON(data []byte) error {
	var env recordEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	decoded := Record{Kind: env.Kind, Link: env.Link, List: env.List}
	if err := decoded.validate(); err != nil {
		return err
	}
	*r = decoded
	return nil
}

func (r Record) validate() error {
	switch r.Kind {
	case KindLink:
		if r.Link == nil || r.List != nil {
			return fmt.Errorf("%w: kind %q requires only a link body", ErrInvalidRecord, r.Kind)
		}
		if r.Link.Code == "" || r.Link.OwnerID == "" || r.Link.RemoteFileID == "" {
			return fmt.Errorf("%w: link is missing code, owner or remote file id", ErrInvalidRecord)
		}
	case KindList:
		if r.List == nil || r.Link != nil {
			return fmt.Errorf("%w: kind %q requires only a list body", ErrInvalidRecord, r.Kind)
		}
		if r.List.Code == "" || r.List.OwnerID == "" {
			return fmt.Errorf("%w: list is missing code or owner", ErrInvalidRecord)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, r.Kind)
	}
	return nil
}
