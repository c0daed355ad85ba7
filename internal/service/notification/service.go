package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/jwalitptl/rdv-api/internal/email"
	"github.com/jwalitptl/rdv-api/internal/model"
	"github.com/jwalitptl/rdv-api/pkg/logger"
)

type Event string

const (
	EventCreated       Event = "appointment.created"
	EventConfirmed     Event = "appointment.confirmed"
	EventCancelled     Event = "appointment.cancelled"
	EventRescheduled   Event = "appointment.rescheduled"
	EventStatusChanged Event = "appointment.status_changed"
)

// Notifier tells the customer about an appointment change. It never returns
// an error: undelivered emails go to the retry queue.
type Notifier interface {
	Notify(ctx context.Context, event Event, appointment *model.Appointment)
}

// Queue stores emails that could not be delivered.
type Queue interface {
	AddFailedEmail(ctx context.Context, failure *model.EmailFailure) (int64, error)
}

// Publisher broadcasts appointment events.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

type service struct {
	sender    email.Sender
	queue     Queue
	publisher Publisher
	logger    *logger.Logger
}

// NewService builds the email notifier. publisher may be nil.
func NewService(sender email.Sender, queue Queue, publisher Publisher, log *logger.Logger) Notifier {
	if log == nil {
		log = logger.Nop()
	}
	return &service{
		sender:    sender,
		queue:     queue,
		publisher: publisher,
		logger:    log,
	}
}

type payload struct {
	AppointmentID int64  `json:"appointment_id"`
	Event         Event  `json:"event"`
	ProviderID    int64  `json:"provider_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
}

func (s *service) Notify(ctx context.Context, event Event, appointment *model.Appointment) {
	data := payload{
		AppointmentID: appointment.ID,
		Event:         event,
		ProviderID:    appointment.ProviderID,
		Date:          appointment.Date,
		StartTime:     appointment.StartTime,
		EndTime:       appointment.EndTime,
		Status:        string(appointment.Status),
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, string(event), data); err != nil {
			s.logger.Warn("failed to publish appointment event",
				"event", string(event),
				"appointment_id", appointment.ID,
				"error", err.Error())
		}
	}

	if appointment.CustomerEmail == "" {
		return
	}

	msg, err := Render(event, appointment)
	if err != nil {
		s.logger.Error(err, "failed to render notification", "event", string(event), "appointment_id", appointment.ID)
		return
	}

	sendErr := s.sender.Send(ctx, msg)
	if sendErr == nil {
		s.logger.Debug("notification sent", "event", string(event), "appointment_id", appointment.ID)
		return
	}

	s.logger.Warn("notification delivery failed, queueing for retry",
		"event", string(event),
		"appointment_id", appointment.ID,
		"error", sendErr.Error())

	raw, _ := json.Marshal(data)
	failure := &model.EmailFailure{
		Recipient:    msg.To,
		Subject:      msg.Subject,
		Body:         msg.Body,
		ErrorCode:    email.ErrorCode(sendErr),
		ErrorMessage: sendErr.Error(),
		Payload:      raw,
	}
	if _, err := s.queue.AddFailedEmail(ctx, failure); err != nil {
		s.logger.Error(err, "failed to queue undelivered notification", "appointment_id", appointment.ID)
	}
}

// Async runs notifications in the background so booking requests never wait on SMTP.
type Async struct {
	next Notifier
	wg   sync.WaitGroup
}

func NewAsync(next Notifier) *Async {
	return &Async{next: next}
}

func (a *Async) Notify(ctx context.Context, event Event, appointment *model.Appointment) {
	snapshot := *appointment
	ctx = context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.next.Notify(ctx, event, &snapshot)
	}()
}

// Wait blocks until in-flight notifications finish or timeout elapses.
func (a *Async) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

var subjects = map[Event]string{
	EventCreated:       "Votre demande de rendez-vous",
	EventConfirmed:     "Votre rendez-vous est confirmé",
	EventCancelled:     "Annulation de votre rendez-vous",
	EventRescheduled:   "Votre rendez-vous a été déplacé",
	EventStatusChanged: "Mise à jour de votre rendez-vous",
}

var intros = map[Event]string{
	EventCreated:       "Nous avons bien enregistré votre demande de rendez-vous.",
	EventConfirmed:     "Votre rendez-vous est confirmé.",
	EventCancelled:     "Votre rendez-vous a été annulé.",
	EventRescheduled:   "Votre rendez-vous a été déplacé.",
	EventStatusChanged: "Le statut de votre rendez-vous a changé.",
}

var bodyTemplate = template.Must(template.New("body").Parse(`<p>Bonjour{{if .Name}} {{.Name}}{{end}},</p>
<p>{{.Intro}}</p>
<ul>
<li>Date : {{.Date}}</li>
<li>Horaire : {{.Start}} - {{.End}}</li>
<li>Statut : {{.Status}}</li>
</ul>
{{if .Notes}}<p>{{.Notes}}</p>{{end}}<p>À bientôt.</p>
`))

// Render builds the French email for an event.
func Render(event Event, appointment *model.Appointment) (email.Message, error) {
	subject, ok := subjects[event]
	if !ok {
		return email.Message{}, fmt.Errorf("unknown notification event %q", event)
	}

	date := appointment.Date
	if d, err := model.ParseDate(appointment.Date); err == nil {
		date = d.Format("02/01/2006")
	}

	var body bytes.Buffer
	err := bodyTemplate.Execute(&body, map[string]string{
		"Name":   appointment.CustomerName,
		"Intro":  intros[event],
		"Date":   date,
		"Start":  appointment.StartTime,
		"End":    appointment.EndTime,
		"Status": appointment.Status.Label(),
		"Notes":  appointment.Notes,
	})
	if err != nil {
		return email.Message{}, fmt.Errorf("render %s: %w", event, err)
	}

	return email.Message{
		To:      appointment.CustomerEmail,
		Subject: subject,
		Body:    body.String(),
	}, nil
}
