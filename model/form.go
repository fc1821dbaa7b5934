package model

import (
	"database/sql/driver"
	"strings"
	"time"
)

type FormStatus string

const (
	StatusDraft     FormStatus = "draft"
	StatusReview    FormStatus = "review"
	StatusPublished FormStatus = "published"
	StatusArchived  FormStatus = "archived"
)

var transitions = map[FormStatus][]FormStatus{
	StatusDraft:     {StatusReview, StatusPublished},
	StatusReview:    {StatusDraft, StatusPublished},
	StatusPublished: {StatusDraft, StatusArchived},
	StatusArchived:  {StatusDraft},
}

func (s FormStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanBecome reports whether the lifecycle allows moving from s to next.
func (s FormStatus) CanBecome(next FormStatus) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Settings holds the per-form switches. Unknown keys are dropped on write.
type Settings struct {
	UniqueEntries  bool  `json:"unique_entries"`
	EnableIdentity *bool `json:"enable_identity,omitempty"`
}

func (s Settings) IdentityEnabled() bool {
	return s.EnableIdentity == nil || *s.EnableIdentity
}

func (s *Settings) Scan(src any) error {
	*s = Settings{}
	return scanJSON(src, s)
}

func (s Settings) Value() (driver.Value, error) {
	return jsonValue(s)
}

type Form struct {
	ID             int64      `db:"id" json:"id"`
	Title          string     `db:"title" json:"title"`
	Description    string     `db:"description" json:"description"`
	Slug           string     `db:"slug" json:"slug"`
	OwnerID        int64      `db:"owner_id" json:"owner_id"`
	Status         FormStatus `db:"status" json:"status"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	RequireCaptcha bool       `db:"require_captcha" json:"require_captcha"`
	Settings       Settings   `db:"settings" json:"settings"`
	ImageURL       string     `db:"image_url" json:"image_url,omitempty"`
	QRCode         []byte     `db:"qr_code" json:"-"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	PublishedAt    *time.Time `db:"published_at" json:"published_at,omitempty"`
}

func (f Form) HasPassword() bool {
	return f.PasswordHash != ""
}

func (f Form) Published() bool {
	return f.Status == StatusPublished
}

type Section struct {
	ID          int64  `db:"id" json:"id"`
	FormID      int64  `db:"form_id" json:"form_id"`
	Title       string `db:"title" json:"title"`
	Description string `db:"description" json:"description"`
	Position    int    `db:"position" json:"order"`
	ImageURL    string `db:"image_url" json:"image_url,omitempty"`
}

// Attachment links a dataset to a form, with per-form column configuration.
type Attachment struct {
	ID            int64      `db:"id" json:"id"`
	FormID        int64      `db:"form_id" json:"form_id"`
	DatasetID     int64      `db:"dataset_id" json:"dataset_id"`
	DatasetName   string     `db:"dataset_name" json:"dataset_name"`
	Position      int        `db:"position" json:"order"`
	HiddenColumns StringList `db:"hidden_columns" json:"hidden_columns"`
	DisplayColumn string     `db:"display_column" json:"display_column"`
	FilterColumns StringList `db:"filter_columns" json:"filter_columns"`

	Columns []Column `db:"-" json:"columns,omitempty"`
}

// VisibleColumns returns the dataset columns not hidden by this attachment.
func (a Attachment) VisibleColumns() []Column {
	visible := make([]Column, 0, len(a.Columns))
	for _, c := range a.Columns {
		if !a.HiddenColumns.Contains(c.Name) {
			visible = append(visible, c)
		}
	}
	return visible
}

// DisplayValue picks the human-readable label of a data map: the configured
// display column, else the first name-like column that has a value. Hidden
// columns are never used.
func (a Attachment) DisplayValue(data Data) (string, bool) {
	if a.DisplayColumn != "" && !a.HiddenColumns.Contains(a.DisplayColumn) {
		if v, ok := data.Text(a.DisplayColumn); ok {
			return v, true
		}
	}
	for _, c := range a.Columns {
		if isNameLike(c.Name) && !a.HiddenColumns.Contains(c.Name) {
			if v, ok := data.Text(c.Name); ok {
				return v, true
			}
		}
	}
	return "", false
}

func isNameLike(column string) bool {
	lower := strings.ToLower(column)
	return strings.Contains(lower, "name") || strings.Contains(lower, "nama")
}
