package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type TeamMember struct {
	bun.BaseModel `bun:"table:team_members,alias:tm"`

	TeamID    uuid.UUID `bun:"team_id,pk,type:uuid"`
	StaffID   uuid.UUID `bun:"staff_id,pk,type:uuid"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}
