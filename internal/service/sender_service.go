package service

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"log"
	"strings"
	"time"
)

//go:embed templates/receipt_email.html
var receiptEmailTemplate string

// MessageSender is the transport behind SenderService.
type MessageSender interface {
	SendEmail(toEmailAddress, toName, subject, plainTextContent, htmlContent string) error
	SendSMS(toNumber, messageBody string) error
}

type receiptEmailData struct {
	OwnerName string
	Plate     string
	AreaID    int64
	Entry     string
	Exit      string
	Amount    string
	Method    string
	PaymentID string
	Year      int
}

// SenderService turns receipts into e-mail and SMS messages.
type SenderService struct {
	sender MessageSender
	loc    *time.Location
	tmpl   *template.Template
}

// NewSenderService formats times in the named zone, falling back to UTC.
func NewSenderService(sender MessageSender, timezone string) *SenderService {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		log.Printf("Notify: unknown timezone %q, using UTC: %v", timezone, err)
		loc = time.UTC
	}
	return &SenderService{
		sender: sender,
		loc:    loc,
		tmpl:   template.Must(template.New("receipt").Parse(receiptEmailTemplate)),
	}
}

// SendReceipt sends whichever of e-mail and SMS the owner has contact
// details for. Failures are logged.
func (s *SenderService) SendReceipt(r Receipt) {
	if r.OwnerEmail != "" {
		if err := s.SendReceiptEmail(r); err != nil {
			log.Printf("Notify: receipt e-mail for payment %s failed: %v", r.PaymentID, err)
		}
	}
	if r.OwnerPhone != "" {
		if err := s.SendReceiptSMS(r); err != nil {
			log.Printf("Notify: receipt SMS for payment %s failed: %v", r.PaymentID, err)
		}
	}
}

func (s *SenderService) SendReceiptEmail(r Receipt) error {
	subject, plain, html, err := s.renderEmail(r)
	if err != nil {
		return err
	}
	return s.sender.SendEmail(r.OwnerEmail, r.OwnerName, subject, plain, html)
}

func (s *SenderService) SendReceiptSMS(r Receipt) error {
	return s.sender.SendSMS(r.OwnerPhone, s.smsBody(r))
}

func (s *SenderService) renderEmail(r Receipt) (subject, plain, html string, err error) {
	data := receiptEmailData{
		OwnerName: r.OwnerName,
		Plate:     r.Plate,
		AreaID:    r.AreaID,
		Entry:     r.EntryTime.In(s.loc).Format("02 Jan 2006 15:04 MST"),
		Exit:      r.ExitTime.In(s.loc).Format("02 Jan 2006 15:04 MST"),
		Amount:    r.Amount.StringFixed(2),
		Method:    string(r.Method),
		PaymentID: r.PaymentID,
		Year:      r.ExitTime.In(s.loc).Year(),
	}
	if data.OwnerName == "" {
		data.OwnerName = "customer"
	}

	subject = fmt.Sprintf("Parking receipt for %s - %s", data.Plate, data.Amount)
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\nWe received your payment.\n\n", data.OwnerName)
	fmt.Fprintf(&b, "Vehicle: %s\nArea: %d\nEntry: %s\nExit: %s\nAmount: %s (%s)\nReceipt: %s\n",
		data.Plate, data.AreaID, data.Entry, data.Exit, data.Amount, data.Method, data.PaymentID)
	plain = b.String()

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("rendering receipt e-mail: %w", err)
	}
	return subject, plain, buf.String(), nil
}

func (s *SenderService) smsBody(r Receipt) string {
	return fmt.Sprintf("Parking: payment of %s received for %s (exit %s). Receipt %s.",
		r.Amount.StringFixed(2), r.Plate, r.ExitTime.In(s.loc).Format("02/01 15:04"), shortID(r.PaymentID))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
