// Package domain contains the commission settings model. Exactly one row is
// active at a time; transactions snapshot the active values at creation so a
// later settings change never rewrites history.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Settings struct {
	ID                   snowflake.ID `gorm:"primaryKey" json:"id"`
	RatePercent          float64      `gorm:"not null" json:"rate_percent"`
	EligibilityDays      int          `gorm:"not null" json:"eligibility_days"`
	RewardPercent        float64      `gorm:"not null" json:"reward_percent"`
	RewardDurationMonths int          `gorm:"not null;default:1" json:"reward_duration_months"`
	IsActive             bool         `gorm:"not null;default:false;index" json:"is_active"`
	CreatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Settings) TableName() string { return "commission_settings" }
