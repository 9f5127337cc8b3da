package core

import (
	"maps"
	"slices"
	"time"
)

// NoteType decides which projections include a note.
type NoteType int

const (
	NoteTypeGeneric NoteType = 0
	NoteTypeNote    NoteType = 1
	NoteTypeTodo    NoteType = 2
)

// String returns the lower-case name used in config files and the CLI.
func (t NoteType) String() string {
	switch t {
	case NoteTypeNote:
		return "note"
	case NoteTypeTodo:
		return "todo"
	default:
		return "generic"
	}
}

// ParseNoteType is the inverse of NoteType.String. Unknown names map to generic.
func ParseNoteType(s string) NoteType {
	switch s {
	case "note", "notes":
		return NoteTypeNote
	case "todo", "todos":
		return NoteTypeTodo
	default:
		return NoteTypeGeneric
	}
}

// Metadata is the opaque structured blob carried by a note (enrichment
// state, AI annotations).
type Metadata map[string]any

// Tag is a reference to a tag attached to a note.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Attachment is carried through updates untouched.
type Attachment struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// Note is the central entity of the domain.
// ID is assigned by the remote service; zero means the note has no
// authoritative identity yet.
type Note struct {
	ID          int64        `json:"id"`
	Content     string       `json:"content"`
	Type        NoteType     `json:"type"`
	IsArchived  bool         `json:"isArchived"`
	IsRecycle   bool         `json:"isRecycle"`
	IsTop       bool         `json:"isTop"`
	IsShare     bool         `json:"isShare"`
	Tags        []Tag        `json:"tags,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	References  []int64      `json:"references,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Metadata    Metadata     `json:"metadata,omitempty"`
}

// Clone returns a deep copy so snapshots handed to subscribers never alias
// store-owned slices.
func (n Note) Clone() Note {
	n.Tags = slices.Clone(n.Tags)
	n.Attachments = slices.Clone(n.Attachments)
	n.References = slices.Clone(n.References)
	if n.Metadata != nil {
		n.Metadata = maps.Clone(n.Metadata)
	}
	return n
}

// MergeNote overlays src onto dst field by field.
//
// Scalars (content, type, flags) always come from src. Slices replace the
// old value only when src carries one (nil means "not sent"). Timestamps
// replace only when set. Metadata keys are overlaid, so keys absent from
// src survive.
func MergeNote(dst, src Note) Note {
	out := dst.Clone()
	if src.ID != 0 {
		out.ID = src.ID
	}
	out.Content = src.Content
	out.Type = src.Type
	out.IsArchived = src.IsArchived
	out.IsRecycle = src.IsRecycle
	out.IsTop = src.IsTop
	out.IsShare = src.IsShare
	if src.Tags != nil {
		out.Tags = slices.Clone(src.Tags)
	}
	if src.Attachments != nil {
		out.Attachments = slices.Clone(src.Attachments)
	}
	if src.References != nil {
		out.References = slices.Clone(src.References)
	}
	if !src.CreatedAt.IsZero() {
		out.CreatedAt = src.CreatedAt
	}
	if !src.UpdatedAt.IsZero() {
		out.UpdatedAt = src.UpdatedAt
	}
	if len(src.Metadata) > 0 {
		if out.Metadata == nil {
			out.Metadata = make(Metadata, len(src.Metadata))
		}
		maps.Copy(out.Metadata, src.Metadata)
	}
	return out
}

// Reference is the relation form of a note reference used by offline notes.
type Reference struct {
	ToNoteID int64 `json:"toNoteId"`
}

// OfflineNote is a note created (or edited) without connectivity.
// ID is client-minted from the creation time and is never reused.
// TargetID is set when the entry edits an existing authoritative note.
type OfflineNote struct {
	ID          int64        `json:"id"`
	TargetID    int64        `json:"targetId,omitempty"`
	Content     string       `json:"content"`
	Type        NoteType     `json:"type"`
	IsArchived  bool         `json:"isArchived"`
	IsRecycle   bool         `json:"isRecycle"`
	IsTop       bool         `json:"isTop"`
	IsShare     bool         `json:"isShare"`
	Tags        []Tag        `json:"tags"`
	Attachments []Attachment `json:"attachments"`
	References  []Reference  `json:"references"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Metadata    Metadata     `json:"metadata"`
	IsOffline   bool         `json:"isOffline"`
	PendingSync bool         `json:"pendingSync"`
}

// Note converts the offline entry into the shape projections display.
func (o OfflineNote) Note() Note {
	refs := make([]int64, 0, len(o.References))
	for _, r := range o.References {
		refs = append(refs, r.ToNoteID)
	}
	id := o.ID
	if o.TargetID != 0 {
		id = o.TargetID
	}
	return Note{
		ID:          id,
		Content:     o.Content,
		Type:        o.Type,
		IsArchived:  o.IsArchived,
		IsRecycle:   o.IsRecycle,
		IsTop:       o.IsTop,
		IsShare:     o.IsShare,
		Tags:        slices.Clone(o.Tags),
		Attachments: slices.Clone(o.Attachments),
		References:  refs,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		Metadata:    maps.Clone(o.Metadata),
	}
}

// Input converts the offline entry back into the upsert payload replayed
// against the remote service.
func (o OfflineNote) Input() NoteInput {
	n := o.Note()
	in := NoteInput{
		ID:          o.TargetID,
		Content:     &n.Content,
		Type:        &n.Type,
		IsArchived:  &n.IsArchived,
		IsRecycle:   &n.IsRecycle,
		IsTop:       &n.IsTop,
		IsShare:     &n.IsShare,
		Attachments: n.Attachments,
		References:  n.References,
		Metadata:    n.Metadata,
	}
	if !n.CreatedAt.IsZero() {
		in.CreatedAt = &n.CreatedAt
	}
	if !n.UpdatedAt.IsZero() {
		in.UpdatedAt = &n.UpdatedAt
	}
	return in
}

// NoteInput is the upsert payload. ID zero creates; nil fields are left
// untouched on update.
type NoteInput struct {
	ID          int64        `json:"id,omitempty"`
	Content     *string      `json:"content,omitempty"`
	Type        *NoteType    `json:"type,omitempty"`
	IsArchived  *bool        `json:"isArchived,omitempty"`
	IsRecycle   *bool        `json:"isRecycle,omitempty"`
	IsTop       *bool        `json:"isTop,omitempty"`
	IsShare     *bool        `json:"isShare,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	References  []int64      `json:"references,omitempty"`
	CreatedAt   *time.Time   `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time   `json:"updatedAt,omitempty"`
	Metadata    Metadata     `json:"metadata,omitempty"`
}

// Apply returns n with every field set in the input overlaid.
func (in NoteInput) Apply(n Note) Note {
	out := n.Clone()
	if in.ID != 0 {
		out.ID = in.ID
	}
	if in.Content != nil {
		out.Content = *in.Content
	}
	if in.Type != nil {
		out.Type = *in.Type
	}
	if in.IsArchived != nil {
		out.IsArchived = *in.IsArchived
	}
	if in.IsRecycle != nil {
		out.IsRecycle = *in.IsRecycle
	}
	if in.IsTop != nil {
		out.IsTop = *in.IsTop
	}
	if in.IsShare != nil {
		out.IsShare = *in.IsShare
	}
	if in.Attachments != nil {
		out.Attachments = slices.Clone(in.Attachments)
	}
	if in.References != nil {
		out.References = slices.Clone(in.References)
	}
	if in.CreatedAt != nil {
		out.CreatedAt = *in.CreatedAt
	}
	if in.UpdatedAt != nil {
		out.UpdatedAt = *in.UpdatedAt
	}
	if len(in.Metadata) > 0 {
		if out.Metadata == nil {
			out.Metadata = make(Metadata, len(in.Metadata))
		}
		maps.Copy(out.Metadata, in.Metadata)
	}
	return out
}

// Patch is the partial update sent with UpdateMany.
type Patch struct {
	IsArchived *bool     `json:"isArchived,omitempty"`
	IsRecycle  *bool     `json:"isRecycle,omitempty"`
	IsTop      *bool     `json:"isTop,omitempty"`
	Type       *NoteType `json:"type,omitempty"`
}

// Apply returns n with the patch overlaid.
func (p Patch) Apply(n Note) Note {
	out := n.Clone()
	if p.IsArchived != nil {
		out.IsArchived = *p.IsArchived
	}
	if p.IsRecycle != nil {
		out.IsRecycle = *p.IsRecycle
	}
	if p.IsTop != nil {
		out.IsTop = *p.IsTop
	}
	if p.Type != nil {
		out.Type = *p.Type
	}
	return out
}

// Ptr is a small helper for building inputs and patches.
func Ptr[T any](v T) *T {
	return &v
}
