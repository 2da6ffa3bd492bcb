package models

import (
	"time"
)

// Sides of a battle. Winner additionally allows "draw"; an empty string means
// the round has not been decided yet.
const (
	SideLeft   = "left"
	SideRight  = "right"
	WinnerDraw = "draw"
)

// End reasons, stable tokens so clients and queries can rely on them.
const (
	EndReasonMomentum    = "momentum"
	EndReasonInactivity  = "inactivity"
	EndReasonMaxDuration = "max_duration"
	EndReasonAdmin       = "admin"
)

// FighterProfile is the display identity of one side of a round.
type FighterProfile struct {
	Handle      string `json:"handle"`
	AvatarURL   string `json:"avatar_url"`
	DisplayName string `json:"display_name"`
}

// Round is one momentum battle. Momentum runs 0-100 with 50 neutral; left
// wins at 0, right wins at 100. At most one round has Active=true.
type Round struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"`

	LeftHandle       string `gorm:"type:varchar(64)" json:"left_handle"`
	LeftAvatarURL    string `json:"left_avatar_url"`
	LeftDisplayName  string `gorm:"type:varchar(128)" json:"left_display_name"`
	RightHandle      string `gorm:"type:varchar(64)" json:"right_handle"`
	RightAvatarURL   string `json:"right_avatar_url"`
	RightDisplayName string `gorm:"type:varchar(128)" json:"right_display_name"`

	Momentum  int     `gorm:"not null;default:50" json:"momentum"`
	PotAmount float64 `gorm:"not null;default:0" json:"pot_amount"`

	StartTime       time.Time `gorm:"not null" json:"start_time"`
	CurrentDeadline time.Time `gorm:"not null" json:"current_deadline"`
	MaxDeadline     time.Time `gorm:"not null" json:"max_deadline"`

	Active    bool       `gorm:"not null;default:true;index" json:"active"`
	Winner    string     `gorm:"type:varchar(8)" json:"winner,omitempty"`
	EndReason string     `gorm:"type:varchar(16)" json:"end_reason,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	PaidAt    *time.Time `gorm:"index" json:"paid_at,omitempty"`

	// Cosmetic, filled in asynchronously by the render worker.
	BattleImageURL string `json:"battle_image_url,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *Round) LeftFighter() FighterProfile {
	return FighterProfile{Handle: r.LeftHandle, AvatarURL: r.LeftAvatarURL, DisplayName: r.LeftDisplayName}
}

func (r *Round) RightFighter() FighterProfile {
	return FighterProfile{Handle: r.RightHandle, AvatarURL: r.RightAvatarURL, DisplayName: r.RightDisplayName}
}
