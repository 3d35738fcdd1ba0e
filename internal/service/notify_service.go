package service

import (
	"fmt"
	"log"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type NotifyConfig struct {
	SendGridAPIKey   string
	FromEmail        string
	FromName         string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
}

// Notifier sends e-mail through SendGrid and SMS through Twilio. Either
// channel is skipped with an error when its credentials are missing.
type Notifier struct {
	cfg NotifyConfig
}

func NewNotifier(cfg NotifyConfig) *Notifier {
	if cfg.FromName == "" {
		cfg.FromName = "Parking"
	}
	return &Notifier{cfg: cfg}
}

func (n *Notifier) buildEmail(toEmailAddress, toName, subject, plainTextContent, htmlContent string) *mail.SGMailV3 {
	from := mail.NewEmail(n.cfg.FromName, n.cfg.FromEmail)
	to := mail.NewEmail(toName, toEmailAddress)
	return mail.NewSingleEmail(from, subject, to, plainTextContent, htmlContent)
}

func (n *Notifier) SendEmail(toEmailAddress, toName, subject, plainTextContent, htmlContent string) error {
	if n.cfg.SendGridAPIKey == "" || n.cfg.FromEmail == "" {
		return fmt.Errorf("sendgrid is not configured")
	}

	message := n.buildEmail(toEmailAddress, toName, subject, plainTextContent, htmlContent)
	client := sendgrid.NewSendClient(n.cfg.SendGridAPIKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("sending e-mail via SendGrid: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		log.Printf("Notify: e-mail sent to %s (subject: %s), status %d", toEmailAddress, subject, response.StatusCode)
		return nil
	}
	return fmt.Errorf("SendGrid returned status %d: %s", response.StatusCode, response.Body)
}

func (n *Notifier) smsParams(toNumber, messageBody string) *openapi.CreateMessageParams {
	params := &openapi.CreateMessageParams{}
	params.SetTo(toNumber)
	params.SetFrom(n.cfg.TwilioFromNumber)
	params.SetBody(messageBody)
	return params
}

func (n *Notifier) SendSMS(toNumber, messageBody string) error {
	if n.cfg.TwilioAccountSID == "" || n.cfg.TwilioAuthToken == "" || n.cfg.TwilioFromNumber == "" {
		return fmt.Errorf("twilio is not configured")
	}
	if !strings.HasPrefix(toNumber, "+") {
		log.Printf("Notify: destination %q is not in E.164 format, SMS may fail", toNumber)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   n.cfg.TwilioAccountSID,
		Password:   n.cfg.TwilioAuthToken,
		AccountSid: n.cfg.TwilioAccountSID,
	})

	resp, err := client.Api.CreateMessage(n.smsParams(toNumber, messageBody))
	if err != nil {
		return fmt.Errorf("sending SMS via Twilio: %w", err)
	}
	if resp != nil && resp.Sid != nil {
		log.Printf("Notify: SMS sent to %s, sid %s", toNumber, *resp.Sid)
	}
	return nil
}
