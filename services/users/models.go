package users

import (
	"strings"
	"time"

	"github.com/tech-arch1tect/backyard/services/acl"
	"gorm.io/gorm"
)

// Gender is stored and exchanged as its numeric code.
type Gender uint8

const (
	GenderMale   Gender = 1
	GenderFemale Gender = 2
)

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	default:
		return "unknown"
	}
}

type User struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	Email     string     `json:"email" gorm:"size:254;uniqueIndex;not null"`
	Password  string     `json:"-" gorm:"not null"`
	FirstName string     `json:"first_name" gorm:"size:150"`
	LastName  string     `json:"last_name" gorm:"size:150"`
	Gender    Gender     `json:"gender"`
	IsActive  bool       `json:"is_active" gorm:"not null;default:false"`
	Token     string     `json:"-" gorm:"size:36;uniqueIndex"`
	Roles     []acl.Role `json:"roles" gorm:"many2many:user_roles"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = NormalizeEmail(u.Email)
	return nil
}

// HasRole reports whether the loaded Roles include name. Roles must be preloaded.
func (u *User) HasRole(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, role := range u.Roles {
		if role.Name == name {
			return true
		}
	}
	return false
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
