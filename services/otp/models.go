package otp

import (
	"encoding/json"
	"time"
)

// Stage separates the code pools of the signup and login flows.
type Stage uint8

const (
	StageSignup Stage = 1
	StageLogin  Stage = 2
)

func (s Stage) String() string {
	switch s {
	case StageSignup:
		return "SIGNUP"
	case StageLogin:
		return "LOGIN"
	default:
		return "UNKNOWN"
	}
}

func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// OneTimeCode rows are never deleted. IsValid flips to true once, when the
// code is redeemed.
type OneTimeCode struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"size:254;not null;index:idx_otp_lookup,priority:1"`
	Code      string    `json:"-" gorm:"size:8;not null"`
	Stage     Stage     `json:"stage" gorm:"not null;index:idx_otp_lookup,priority:2"`
	IsValid   bool      `json:"is_valid" gorm:"not null;default:false;index:idx_otp_lookup,priority:3"`
	CreatedAt time.Time `json:"created_at"`
}

func Models() []any {
	return []any{&OneTimeCode{}}
}
