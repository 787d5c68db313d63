package models

import "time"

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	StatusRegistration TournamentStatus = "registration"
	StatusActive       TournamentStatus = "active"
	StatusCompleted    TournamentStatus = "completed"
	StatusCanceled     TournamentStatus = "canceled"
)

const DefaultGroupSize = 16

// Tournament представляет турнир.
type Tournament struct {
	ID          int              `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	Game        string           `json:"game" db:"game"`
	OrganizerID int              `json:"organizer_id" db:"organizer_id"`
	EntryFee    int64            `json:"entry_fee" db:"entry_fee"` // minor units, 0 = free
	Currency    string           `json:"currency" db:"currency"`
	MaxTeams    int              `json:"max_teams" db:"max_teams"`
	GroupSize   int              `json:"group_size" db:"group_size"`
	Status      TournamentStatus `json:"status" db:"status"`
	StartDate   time.Time        `json:"start_date" db:"start_date"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Participants []Participant `json:"participants,omitempty" db:"-"`
	Groups       []Group       `json:"groups,omitempty" db:"-"`
}

func (t *Tournament) IsPaid() bool {
	return t.EntryFee > 0
}
