package mail

import (
	"bytes"
	"errors"
	"fmt"
	htmlTemplate "html/template"
	"path/filepath"
	textTemplate "text/template"
	"time"

	"github.com/tech-arch1tect/backyard/config"
	"github.com/tech-arch1tect/backyard/services/logging"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

var ErrTemplateNotFound = errors.New("mail template not found")

// Sender delivers composed messages; *mail.Client satisfies it.
type Sender interface {
	DialAndSend(messages ...*mail.Msg) error
}

type Service struct {
	config        *config.MailConfig
	client        Sender
	htmlTemplates *htmlTemplate.Template
	textTemplates *textTemplate.Template
	builtin       *textTemplate.Template
	logger        *logging.Service
}

// NewService builds an SMTP-backed service. With delivery disabled the
// service still renders every message but only logs it.
func NewService(cfg *config.MailConfig, logger *logging.Service) (*Service, error) {
	logger = logger.Named("mail")

	if !cfg.Enabled {
		logger.Info("mail delivery disabled, messages will be logged only")
		return NewServiceWithClient(cfg, logger, nil)
	}

	logger.Info("initializing mail service",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("encryption", cfg.Encryption),
		zap.String("from_address", cfg.FromAddress))

	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("MAIL_FROM_ADDRESS is required")
	}

	client, err := mail.NewClient(cfg.Host, clientOptions(cfg)...)
	if err != nil {
		logger.Error("failed to create mail client",
			zap.Error(err),
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port))
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return NewServiceWithClient(cfg, logger, client)
}

// NewServiceWithClient wires an explicit sender. A nil sender logs instead of delivering.
func NewServiceWithClient(cfg *config.MailConfig, logger *logging.Service, client Sender) (*Service, error) {
	service := &Service{
		config:  cfg,
		client:  client,
		builtin: parseBuiltinTemplates(),
		logger:  logger,
	}

	if err := service.loadTemplates(); err != nil {
		return nil, fmt.Errorf("failed to load mail templates: %w", err)
	}
	return service, nil
}

func clientOptions(cfg *config.MailConfig) []mail.Option {
	opts := []mail.Option{mail.WithPort(cfg.Port)}

	switch cfg.Encryption {
	case "ssl":
		opts = append(opts, mail.WithSSL())
	case "none":
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}
	return opts
}

func (s *Service) loadTemplates() error {
	if s.config.TemplatesDir == "" {
		return nil
	}

	s.logger.Info("loading mail templates", zap.String("templates_dir", s.config.TemplatesDir))

	htmlPattern := filepath.Join(s.config.TemplatesDir, "*.html")
	if matches, _ := filepath.Glob(htmlPattern); len(matches) > 0 {
		parsed, err := htmlTemplate.ParseFiles(matches...)
		if err != nil {
			return fmt.Errorf("failed to parse HTML templates: %w", err)
		}
		s.htmlTemplates = parsed
	}

	textPattern := filepath.Join(s.config.TemplatesDir, "*.txt")
	if matches, _ := filepath.Glob(textPattern); len(matches) > 0 {
		parsed, err := textTemplate.ParseFiles(matches...)
		if err != nil {
			return fmt.Errorf("failed to parse text templates: %w", err)
		}
		s.textTemplates = parsed
	}

	var htmlCount, textCount int
	if s.htmlTemplates != nil {
		htmlCount = len(s.htmlTemplates.Templates())
	}
	if s.textTemplates != nil {
		textCount = len(s.textTemplates.Templates())
	}
	s.logger.Info("mail templates loaded",
		zap.Int("html_templates", htmlCount),
		zap.Int("text_templates", textCount))
	return nil
}

func (s *Service) NewMessage() (*mail.Msg, error) {
	message := mail.NewMsg()

	var err error
	if s.config.FromName != "" {
		err = message.FromFormat(s.config.FromName, s.config.FromAddress)
	} else {
		err = message.From(s.config.FromAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set FROM address: %w", err)
	}
	return message, nil
}

func (s *Service) Send(message *mail.Msg) error {
	if s.client == nil {
		s.logger.Info("mail delivery disabled, message not sent",
			zap.Strings("recipients", message.GetToString()),
			zap.Strings("subject", message.GetGenHeader(mail.HeaderSubject)))
		return nil
	}

	startTime := time.Now()
	err := s.client.DialAndSend(message)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("failed to send email",
			zap.Error(err),
			zap.Duration("attempt_duration", duration))
		return err
	}

	s.logger.Info("email sent", zap.Duration("send_duration", duration))
	return nil
}

func (s *Service) SendTemplate(templateName string, to []string, subject string, data map[string]any) error {
	s.logger.Info("sending template email",
		zap.String("template", templateName),
		zap.Strings("recipients", to),
		zap.String("subject", subject))

	message, err := s.NewMessage()
	if err != nil {
		return err
	}
	if err := message.To(to...); err != nil {
		return fmt.Errorf("failed to set TO addresses: %w", err)
	}
	message.Subject(subject)

	if err := s.renderTemplate(templateName, data, message); err != nil {
		s.logger.Error("failed to render template", zap.Error(err), zap.String("template", templateName))
		return fmt.Errorf("failed to render template: %w", err)
	}

	return s.Send(message)
}

func (s *Service) renderTemplate(templateName string, data map[string]any, message *mail.Msg) error {
	var hasHTML bool

	if s.htmlTemplates != nil {
		if tmpl := s.htmlTemplates.Lookup(templateName + ".html"); tmpl != nil {
			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, data); err != nil {
				return fmt.Errorf("failed to execute HTML template: %w", err)
			}
			message.SetBodyString(mail.TypeTextHTML, buf.String())
			hasHTML = true
		}
	}

	text := s.lookupText(templateName)
	if text == nil {
		if hasHTML {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, templateName)
	}

	var buf bytes.Buffer
	if err := text.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to execute text template: %w", err)
	}
	if hasHTML {
		message.AddAlternativeString(mail.TypeTextPlain, buf.String())
	} else {
		message.SetBodyString(mail.TypeTextPlain, buf.String())
	}
	return nil
}

func (s *Service) lookupText(templateName string) *textTemplate.Template {
	if s.textTemplates != nil {
		if tmpl := s.textTemplates.Lookup(templateName + ".txt"); tmpl != nil {
			return tmpl
		}
	}
	return s.builtin.Lookup(templateName + ".txt")
}
