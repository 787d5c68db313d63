package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type ParticipantStatus string

const (
	ParticipantPendingPayment ParticipantStatus = "pending_payment"
	ParticipantRegistered     ParticipantStatus = "registered"
	ParticipantCancelled      ParticipantStatus = "cancelled"
)

const MaxPlayersPerTeam = 5

// Player is one roster entry of a registration.
type Player struct {
	IGN    string `json:"ign" validate:"required,max=64"`
	GameID string `json:"game_id" validate:"required,max=64"`
}

// Players is stored as a JSONB column.
type Players []Player

func (p Players) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p)
}

func (p *Players) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = Players{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("players: unsupported column type")
	}
	return json.Unmarshal(raw, p)
}

// Participant is a tournament registration (booking) of one user and their team.
type Participant struct {
	ID           int               `json:"id" db:"id"`
	TournamentID int               `json:"tournament_id" db:"tournament_id"`
	UserID       int               `json:"user_id" db:"user_id"`
	TeamName     string            `json:"team_name" db:"team_name"`
	Phone        string            `json:"phone" db:"phone"`
	RealName     string            `json:"real_name" db:"real_name"`
	Players      Players           `json:"players" db:"players"`
	Status       ParticipantStatus `json:"status" db:"status"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
}
