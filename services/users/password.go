package users

import (
	"fmt"
	"unicode"

	"github.com/tech-arch1tect/backyard/config"
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// PasswordProblems lists every policy rule the password breaks, in a stable
// order. An empty result means the password is acceptable.
func PasswordProblems(cfg config.AuthConfig, password string) []string {
	var problems []string
	length := len([]rune(password))

	if length < cfg.MinLength {
		problems = append(problems, fmt.Sprintf("Ensure this field has at least %d characters.", cfg.MinLength))
	}
	if cfg.MaxLength > 0 && length > cfg.MaxLength {
		problems = append(problems, fmt.Sprintf("Ensure this field has no more than %d characters.", cfg.MaxLength))
	} else if len(password) > MaxPasswordBytes {
		problems = append(problems, fmt.Sprintf("Ensure this field has no more than %d bytes.", MaxPasswordBytes))
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	var previous rune
	run, longestRun := 0, 0
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}

		if char == previous {
			run++
		} else {
			run = 1
			previous = char
		}
		longestRun = max(longestRun, run)
	}

	if cfg.RequireUpper && !hasUpper {
		problems = append(problems, "Password must contain at least one uppercase letter.")
	}
	if cfg.RequireLower && !hasLower {
		problems = append(problems, "Password must contain at least one lowercase letter.")
	}
	if cfg.RequireNumber && !hasNumber {
		problems = append(problems, "Password must contain at least one number.")
	}
	if cfg.RequireSpecial && !hasSpecial {
		problems = append(problems, "Password must contain at least one special character.")
	}
	if cfg.MaxRepeat > 0 && longestRun > cfg.MaxRepeat {
		problems = append(problems, fmt.Sprintf("Password must not repeat the same character more than %d times in a row.", cfg.MaxRepeat))
	}

	return problems
}

func bcryptCost(cfg config.AuthConfig) int {
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return cfg.BcryptCost
}
