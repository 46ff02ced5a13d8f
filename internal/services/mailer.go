package services

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/devstudio/internal/models"
)

// MailSender is the customer-facing notification collaborator. Implementations
// must tolerate partial failure: a send error never rolls back domain state.
type MailSender interface {
	SendOTPEmail(to, name, code string) error
	SendResetEmail(to, name, resetLink string) error
	SendOrderPaidCustomer(order *models.Order) error
	SendOrderPaidOperator(order *models.Order) error
}

// SMTPMailer delivers mail over SMTP with STARTTLS. Constructed once at
// startup and reused for every send.
type SMTPMailer struct {
	host       string
	port       string
	username   string
	password   string
	from       string
	adminEmail string
	logger     zerolog.Logger
}

// NewSMTPMailer constructs an SMTPMailer.
func NewSMTPMailer(host, port, username, password, from, adminEmail string, logger zerolog.Logger) *SMTPMailer {
	return &SMTPMailer{
		host:       host,
		port:       port,
		username:   username,
		password:   password,
		from:       from,
		adminEmail: adminEmail,
		logger:     logger.With().Str("service", "mailer").Logger(),
	}
}

var otpTemplate = template.Must(template.New("otp").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Welcome {{.Name}}!</h2>
  <p>Please use the following code to verify your email:</p>
  <div style="padding: 20px; text-align: center;">
    <h1 style="letter-spacing: 5px;">{{.Code}}</h1>
  </div>
  <p><strong>This code is valid for 10 minutes.</strong></p>
  <p>If you didn't request this, please ignore this email.</p>
</div>`))

var resetTemplate = template.Must(template.New("reset").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Password Reset Request</h2>
  <p>Hi {{.Name}},</p>
  <p>You requested to reset your password. Use the link below to proceed:</p>
  <p><a href="{{.Link}}">Reset Password</a></p>
  <p>Or copy this link: {{.Link}}</p>
  <p><strong>This link expires in 30 minutes.</strong></p>
  <p>If you didn't request this, please ignore this email.</p>
</div>`))

var orderPaidCustomerTemplate = template.Must(template.New("orderPaidCustomer").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h1>Order Confirmed</h1>
  <p>Hi <strong>{{.Name}}</strong>,</p>
  <p>Thank you for your order! We've received your payment and will start working on your project shortly.</p>
  <ul>
    <li>Project type: {{.ProjectType}}</li>
    <li>Tech stack: {{.TechStack}}</li>
    <li>Pages: {{.NumberOfPages}}</li>
    <li>Total paid: {{.TotalPrice}}</li>
  </ul>
  <p>Payment ID: {{.PaymentID}}</p>
  <h3>Your project details</h3>
  <p>{{.ProjectDetails}}</p>
</div>`))

var orderPaidOperatorTemplate = template.Must(template.New("orderPaidOperator").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h1>New Order Received</h1>
  <ul>
    <li>Order ID: {{.ID}}</li>
    <li>Customer: {{.Name}} ({{.Email}})</li>
    <li>Project type: {{.ProjectType}}</li>
    <li>Tech stack: {{.TechStack}}</li>
    <li>Pages: {{.NumberOfPages}}</li>
    <li>Total: {{.TotalPrice}}</li>
    <li>Payment ID: {{.PaymentID}}</li>
  </ul>
  <h3>Project details</h3>
  <p>{{.ProjectDetails}}</p>
</div>`))

// SendOTPEmail delivers a verification code to a freshly registered user.
func (m *SMTPMailer) SendOTPEmail(to, name, code string) error {
	body, err := render(otpTemplate, map[string]string{"Name": name, "Code": code})
	if err != nil {
		return err
	}
	return m.send(to, "Email Verification Code - Developer Studio", body)
}

// SendResetEmail delivers the raw password-reset link out-of-band.
func (m *SMTPMailer) SendResetEmail(to, name, resetLink string) error {
	body, err := render(resetTemplate, map[string]string{"Name": name, "Link": resetLink})
	if err != nil {
		return err
	}
	return m.send(to, "Password Reset Request - Developer Studio", body)
}

// SendOrderPaidCustomer confirms a completed payment to the customer.
func (m *SMTPMailer) SendOrderPaidCustomer(order *models.Order) error {
	body, err := render(orderPaidCustomerTemplate, order)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Order Confirmed #%s - Developer Studio", shortID(order.ID.String()))
	return m.send(order.Email, subject, body)
}

// SendOrderPaidOperator notifies the operator mailbox about a paid order.
func (m *SMTPMailer) SendOrderPaidOperator(order *models.Order) error {
	if m.adminEmail == "" {
		m.logger.Warn().Msg("admin email not configured, skipping operator notification")
		return nil
	}
	body, err := render(orderPaidOperatorTemplate, order)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("New Order #%s - %.0f", shortID(order.ID.String()), order.TotalPrice)
	return m.send(m.adminEmail, subject, body)
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func shortID(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[len(id)-6:]
}

func (m *SMTPMailer) send(to, subject, htmlBody string) error {
	if m.username == "" {
		m.logger.Warn().Str("to", to).Msg("smtp not configured, skipping mail")
		return nil
	}

	msg := strings.Join([]string{
		fmt.Sprintf("From: %s", m.from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		htmlBody,
	}, "\r\n")

	if err := m.sendSMTP(to, []byte(msg)); err != nil {
		m.logger.Error().Err(err).Str("to", to).Msg("mail delivery failed")
		return err
	}

	m.logger.Info().Str("to", to).Str("subject", subject).Msg("mail sent")
	return nil
}

func (m *SMTPMailer) sendSMTP(to string, msg []byte) error {
	addr := net.JoinHostPort(m.host, m.port)

	conn, err := net.DialTimeout("tcp", addr, 8*time.Second)
	if err != nil {
		return err
	}
	_ = conn.SetDeadline(time.Now().Add(15 * time.Second))

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		return err
	}
	defer func() { _ = client.Quit() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return err
		}
	}

	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	if err := client.Auth(auth); err != nil {
		return err
	}

	if err := client.Mail(m.from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
