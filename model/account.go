package model

import "time"

type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleFormCreator   Role = "form_creator"
	RoleEditor        Role = "editor"
	RoleRespondent    Role = "respondent"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RoleFormCreator, RoleEditor, RoleRespondent:
		return true
	}
	return false
}

// Staff roles may use the administrative API.
func (r Role) Staff() bool {
	return r.Valid() && r != RoleRespondent
}

type Account struct {
	ID        int64     `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Email     string    `db:"email" json:"email"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Actor is the authenticated account a store operation runs on behalf of.
type Actor struct {
	ID       int64
	Username string
	Role     Role
}

func (a Actor) Admin() bool {
	return a.Role == RoleAdministrator
}
