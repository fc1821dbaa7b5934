package model

import "time"

type Response struct {
	ID                   int64     `db:"id" json:"id"`
	FormID               int64     `db:"form_id" json:"form_id"`
	RecordID             *int64    `db:"record_id" json:"record_id"`
	AccountID            *int64    `db:"account_id" json:"account_id"`
	SessionKey           string    `db:"session_key" json:"-"`
	IsComplete           bool      `db:"is_complete" json:"is_complete"`
	SubmittedAt          time.Time `db:"submitted_at" json:"submitted_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
	IPAddress            string    `db:"ip_address" json:"ip_address"`
	UserAgent            string    `db:"user_agent" json:"user_agent"`
	IsNewIdentity        bool      `db:"is_new_identity" json:"is_new_identity"`
	NewIdentityData      Data      `db:"new_identity_data" json:"new_identity_data,omitempty"`
	NewIdentityDatasetID *int64    `db:"new_identity_dataset_id" json:"new_identity_dataset_id,omitempty"`

	Answers []Answer `db:"-" json:"answers,omitempty"`
}

// IdentityState names which of the three mutually exclusive identity states
// a freshly recorded response is in.
type IdentityState int

const (
	NoIdentity IdentityState = iota
	ExistingRecord
	PendingIdentity
)

func (r Response) Identity() IdentityState {
	switch {
	case r.RecordID != nil && !r.IsNewIdentity:
		return ExistingRecord
	case r.IsNewIdentity:
		return PendingIdentity
	}
	return NoIdentity
}

type Answer struct {
	ID         int64     `db:"id" json:"id"`
	ResponseID int64     `db:"response_id" json:"response_id"`
	QuestionID int64     `db:"question_id" json:"question_id"`
	Value      RawJSON   `db:"value" json:"value"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
