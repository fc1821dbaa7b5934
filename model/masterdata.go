package model

import "time"

type ColumnType string

const (
	ColumnText   ColumnType = "text"
	ColumnNumber ColumnType = "number"
	ColumnDate   ColumnType = "date"
	ColumnEmail  ColumnType = "email"
)

func (t ColumnType) Valid() bool {
	switch t {
	case ColumnText, ColumnNumber, ColumnDate, ColumnEmail:
		return true
	}
	return false
}

type Dataset struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	OwnerID     int64     `db:"owner_id" json:"owner_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	Columns []Column `db:"-" json:"columns,omitempty"`
}

type Column struct {
	ID         int64      `db:"id" json:"id"`
	DatasetID  int64      `db:"dataset_id" json:"dataset_id"`
	Name       string     `db:"name" json:"name"`
	DataType   ColumnType `db:"data_type" json:"data_type"`
	Position   int        `db:"position" json:"position"`
	IsRequired bool       `db:"is_required" json:"is_required"`
}

type Record struct {
	ID        int64     `db:"id" json:"id"`
	DatasetID int64     `db:"dataset_id" json:"dataset_id"`
	Data      Data      `db:"data" json:"data"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type Share struct {
	DatasetID int64     `db:"dataset_id" json:"dataset_id"`
	AccountID int64     `db:"account_id" json:"account_id"`
	Username  string    `db:"username" json:"username"`
	CanEdit   bool      `db:"can_edit" json:"can_edit"`
	SharedAt  time.Time `db:"shared_at" json:"shared_at"`
}
