package delivery

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/mail"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config configures e-mail delivery through Amazon SES
type Config struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Region      string `json:"region" yaml:"region"`
	FromAddress string `json:"from_address" yaml:"from_address"`
	FromName    string `json:"from_name" yaml:"from_name"`
	ReplyTo     string `json:"reply_to,omitempty" yaml:"reply_to,omitempty"`
	Subject     string `json:"subject" yaml:"subject"`
	Body        string `json:"body" yaml:"body"`
}

// DefaultConfig returns delivery disabled with Portuguese message templates
func DefaultConfig() Config {
	return Config{
		Enabled:  false,
		FromName: "CEUE",
		Subject:  "Declaração de Créditos Complementares {{ ano }}",
		Body: "Olá, {{ estudante }}!\r\n\r\n" +
			"Segue em anexo a sua declaração de créditos complementares referente a " +
			"{{ horas_totais }} horas de atuação no CEUE em {{ ano }}.\r\n\r\n" +
			"{{ diretor }}\r\n",
	}
}

// Message is an e-mail with optional attachments
type Message struct {
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Attachment is a file sent with a message
type Attachment struct {
	Name        string
	Data        []byte
	ContentType string
}

// sendEmailAPI is the subset of the SES v2 client used here
type sendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Mailer sends raw MIME messages through SES v2
type Mailer struct {
	client sendEmailAPI
	config Config
	logger *zap.Logger
}

// NewMailer builds an SES client from the default AWS configuration
func NewMailer(ctx context.Context, cfg Config, logger *zap.Logger) (*Mailer, error) {
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("delivery from_address is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return newMailer(sesv2.NewFromConfig(awsCfg), cfg, logger), nil
}

func newMailer(client sendEmailAPI, cfg Config, logger *zap.Logger) *Mailer {
	return &Mailer{client: client, config: cfg, logger: logger}
}

// Send delivers msg and returns the SES message id
func (m *Mailer) Send(ctx context.Context, msg *Message) (string, error) {
	if len(msg.To) == 0 {
		return "", fmt.Errorf("no recipients specified")
	}
	for _, to := range msg.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return "", fmt.Errorf("invalid recipient %q: %w", to, err)
		}
	}

	m.logger.Info("Sending email",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject))

	out, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.config.FromAddress),
		Destination: &types.Destination{
			ToAddresses: msg.To,
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: m.buildMessage(msg)},
		},
	})
	if err != nil {
		m.logger.Error("Failed to send email",
			zap.Error(err),
			zap.Strings("to", msg.To))
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	id := aws.ToString(out.MessageId)
	m.logger.Info("Email sent successfully",
		zap.Strings("to", msg.To),
		zap.String("message_id", id))

	return id, nil
}

// buildMessage renders msg as a multipart/mixed MIME message
func (m *Mailer) buildMessage(msg *Message) []byte {
	var buf bytes.Buffer
	boundary := "certgen-" + uuid.NewString()

	from := mail.Address{Name: m.config.FromName, Address: m.config.FromAddress}
	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	if m.config.ReplyTo != "" {
		fmt.Fprintf(&buf, "Reply-To: %s\r\n", m.config.ReplyTo)
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if len(msg.Attachments) == 0 {
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
		buf.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		buf.WriteString(encodeBase64Lines([]byte(msg.Body)))
		return buf.Bytes()
	}

	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=\"%s\"\r\n\r\n", boundary)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
	buf.WriteString(encodeBase64Lines([]byte(msg.Body)))

	for _, a := range msg.Attachments {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		name := mime.QEncoding.Encode("utf-8", a.Name)

		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		fmt.Fprintf(&buf, "Content-Type: %s; name=\"%s\"\r\n", contentType, name)
		buf.WriteString("Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&buf, "Content-Disposition: attachment; filename=\"%s\"\r\n\r\n", name)
		buf.WriteString(encodeBase64Lines(a.Data))
	}

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes()
}

// encodeBase64Lines encodes data as base64 wrapped at 76 columns
func encodeBase64Lines(data []byte) string {
	const lineLen = 76
	encoded := base64.StdEncoding.EncodeToString(data)

	var b strings.Builder
	for i := 0; i < len(encoded); i += lineLen {
		end := i + lineLen
		if end > len(encoded) {
			end = len(encoded)
		}
		b.WriteString(encoded[i:end])
		b.WriteString("\r\n")
	}
	return b.String()
}
