package core

import (
	"strings"
	"time"
)

// Filter describes which notes a projection holds. Nil pointers mean
// "any value". It is sent to the remote list endpoint and evaluated locally
// for offline reads and cache seeding.
type Filter struct {
	Type       *NoteType  `json:"type,omitempty" yaml:"type,omitempty"`
	IsArchived *bool      `json:"isArchived,omitempty" yaml:"isArchived,omitempty"`
	IsRecycle  *bool      `json:"isRecycle,omitempty" yaml:"isRecycle,omitempty"`
	IsShare    *bool      `json:"isShare,omitempty" yaml:"isShare,omitempty"`
	TagID      int64      `json:"tagId,omitempty" yaml:"tagId,omitempty"`
	WithoutTag bool       `json:"withoutTag,omitempty" yaml:"withoutTag,omitempty"`
	WithFile   bool       `json:"withFile,omitempty" yaml:"withFile,omitempty"`
	WithLink   bool       `json:"withLink,omitempty" yaml:"withLink,omitempty"`
	HasTodo    bool       `json:"hasTodo,omitempty" yaml:"hasTodo,omitempty"`
	StartDate  *time.Time `json:"startDate,omitempty" yaml:"startDate,omitempty"`
	EndDate    *time.Time `json:"endDate,omitempty" yaml:"endDate,omitempty"`
	SearchText string     `json:"searchText,omitempty" yaml:"searchText,omitempty"`
}

// Merge overlays the non-zero fields of o onto f.
func (f Filter) Merge(o Filter) Filter {
	if o.Type != nil {
		f.Type = o.Type
	}
	if o.IsArchived != nil {
		f.IsArchived = o.IsArchived
	}
	if o.IsRecycle != nil {
		f.IsRecycle = o.IsRecycle
	}
	if o.IsShare != nil {
		f.IsShare = o.IsShare
	}
	if o.TagID != 0 {
		f.TagID = o.TagID
	}
	f.WithoutTag = f.WithoutTag || o.WithoutTag
	f.WithFile = f.WithFile || o.WithFile
	f.WithLink = f.WithLink || o.WithLink
	f.HasTodo = f.HasTodo || o.HasTodo
	if o.StartDate != nil {
		f.StartDate = o.StartDate
	}
	if o.EndDate != nil {
		f.EndDate = o.EndDate
	}
	if o.SearchText != "" {
		f.SearchText = o.SearchText
	}
	return f
}

// Matches reports whether n belongs to the filtered set.
func (f Filter) Matches(n Note) bool {
	if f.Type != nil && n.Type != *f.Type {
		return false
	}
	if f.IsArchived != nil && n.IsArchived != *f.IsArchived {
		return false
	}
	if f.IsRecycle != nil && n.IsRecycle != *f.IsRecycle {
		return false
	}
	if f.IsShare != nil && n.IsShare != *f.IsShare {
		return false
	}
	if f.TagID != 0 && !hasTag(n, f.TagID) {
		return false
	}
	if f.WithoutTag && len(n.Tags) > 0 {
		return false
	}
	if f.WithFile && len(n.Attachments) == 0 {
		return false
	}
	if f.WithLink && !strings.Contains(n.Content, "http://") && !strings.Contains(n.Content, "https://") {
		return false
	}
	if f.HasTodo && !strings.Contains(n.Content, "- [ ]") && !strings.Contains(n.Content, "- [x]") {
		return false
	}
	if f.StartDate != nil && n.CreatedAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && n.CreatedAt.After(*f.EndDate) {
		return false
	}
	if f.SearchText != "" && !strings.Contains(strings.ToLower(n.Content), strings.ToLower(f.SearchText)) {
		return false
	}
	return true
}

func hasTag(n Note, id int64) bool {
	for _, t := range n.Tags {
		if t.ID == id {
			return true
		}
	}
	return false
}
