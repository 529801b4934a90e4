package revocation

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// BlacklistedToken is append-only; a revoked token stays revoked forever.
// A non-empty SessionID also revokes every token carrying that sid.
type BlacklistedToken struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Token     string    `json:"-" gorm:"type:text;not null"`
	TokenHash string    `json:"-" gorm:"size:64;index;not null"`
	SessionID string    `json:"-" gorm:"size:64;index"`
	CreatedAt time.Time `json:"created_at"`
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func Models() []any {
	return []any{&BlacklistedToken{}}
}
