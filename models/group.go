package models

import (
	"fmt"
	"time"
)

// Group is a named subset of a tournament's participants with its own room.
type Group struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Name         string    `json:"name" db:"name"`
	MemberIDs    []int     `json:"member_ids" db:"member_ids"`
	RoomID       *int      `json:"room_id,omitempty" db:"room_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

func GroupName(n int) string {
	return fmt.Sprintf("Group %d", n)
}

func (g *Group) HasMember(userID int) bool {
	for _, id := range g.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}
