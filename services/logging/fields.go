package logging

import (
	"strings"

	"go.uber.org/zap"
)

func UserID(id uint) zap.Field {
	return zap.Uint("user_id", id)
}

// Email logs an address with its local part masked: "j***@example.com".
func Email(addr string) zap.Field {
	return zap.String("email", MaskEmail(addr))
}

func MaskEmail(addr string) string {
	local, domain, ok := strings.Cut(strings.TrimSpace(addr), "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}
