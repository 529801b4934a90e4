package notification

import (
	"encoding/json"
	"time"
)

type Channel uint8

const (
	ChannelEmail    Channel = 1
	ChannelWhatsApp Channel = 2
	ChannelSMS      Channel = 3
	ChannelAPI      Channel = 4
)

func (c Channel) String() string {
	switch c {
	case ChannelEmail:
		return "email"
	case ChannelWhatsApp:
		return "whatsapp"
	case ChannelSMS:
		return "sms"
	case ChannelAPI:
		return "api"
	default:
		return "unknown"
	}
}

func (c Channel) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

type Event uint8

const (
	EventSignUpOTPEmail     Event = 1
	EventLoginOTPEmail      Event = 2
	EventResendOTPEmail     Event = 3
	EventResetPasswordEmail Event = 4
	EventAPIResponse        Event = 5
)

// String doubles as the mail template name.
func (e Event) String() string {
	switch e {
	case EventSignUpOTPEmail:
		return "sign_up_otp_email"
	case EventLoginOTPEmail:
		return "login_otp_email"
	case EventResendOTPEmail:
		return "resend_otp_email"
	case EventResetPasswordEmail:
		return "reset_password_email"
	case EventAPIResponse:
		return "api_response"
	default:
		return "unknown"
	}
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

func (e Event) Subject() string {
	switch e {
	case EventSignUpOTPEmail:
		return "Verify your account"
	case EventLoginOTPEmail:
		return "Your login code"
	case EventResendOTPEmail:
		return "Your new verification code"
	case EventResetPasswordEmail:
		return "Password reset request"
	default:
		return "Notification"
	}
}

// Notification is the audit row written for every dispatched message.
type Notification struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Email       string    `json:"email" gorm:"size:254;index;not null"`
	Channel     Channel   `json:"channel" gorm:"not null"`
	Event       Event     `json:"event" gorm:"not null"`
	IsSent      bool      `json:"is_sent" gorm:"not null;default:false"`
	APIResponse *string   `json:"api_response"`
	CreatedAt   time.Time `json:"created_at"`
}

func Models() []any {
	return []any{&Notification{}}
}
