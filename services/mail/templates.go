package mail

import textTemplate "text/template"

// Built-in plain text bodies for every account notification. Files in
// MAIL_TEMPLATES_DIR with the same name take precedence.
var builtinTemplates = map[string]string{
	"sign_up_otp_email": `Hello {{.FirstName}},

Welcome to {{.AppName}}. Your verification code is {{.OTP}}.
The code expires in {{.ExpiryMinutes}} minutes.
`,
	"login_otp_email": `Hello {{.FirstName}},

Your {{.AppName}} login code is {{.OTP}}.
The code expires in {{.ExpiryMinutes}} minutes. If you did not try to sign in, change your password.
`,
	"resend_otp_email": `Hello {{.FirstName}},

Your new {{.AppName}} code is {{.OTP}}.
The code expires in {{.ExpiryMinutes}} minutes.
`,
	"reset_password_email": `Hello,

A password reset was requested for {{.Email}} on {{.AppName}}.
Use this link within {{.ExpiryDuration}} to choose a new password:

{{.ResetURL}}

If you did not request a reset you can ignore this message.
`,
}

func parseBuiltinTemplates() *textTemplate.Template {
	root := textTemplate.New("builtin")
	for name, body := range builtinTemplates {
		textTemplate.Must(root.New(name + ".txt").Parse(body))
	}
	return root
}
