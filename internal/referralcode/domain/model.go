// Package domain contains the referral code registry model. Each user owns at
// most one code; the code string is globally unique and the counters only ever
// grow.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ReferralCode struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID              snowflake.ID `gorm:"not null;uniqueIndex" json:"user_id"`
	Code                string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	TotalReferrals      int          `gorm:"not null;default:0" json:"total_referrals"`
	SuccessfulReferrals int          `gorm:"not null;default:0" json:"successful_referrals"`
	RewardsEarned       int          `gorm:"not null;default:0" json:"rewards_earned"`
	CreatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ReferralCode) TableName() string { return "referral_codes" }
