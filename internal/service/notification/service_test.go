package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/rdv-api/internal/email"
	"github.com/jwalitptl/rdv-api/internal/model"
	"github.com/jwalitptl/rdv-api/pkg/circuitbreaker"
)

type stubSender struct {
	mu   sync.Mutex
	err  error
	sent []email.Message
}

func (s *stubSender) Send(_ context.Context, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type stubQueue struct {
	failures []*model.EmailFailure
	err      error
}

func (q *stubQueue) AddFailedEmail(_ context.Context, f *model.EmailFailure) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	q.failures = append(q.failures, f)
	return int64(len(q.failures)), nil
}

type stubPublisher struct {
	events []string
	err    error
}

func (p *stubPublisher) Publish(_ context.Context, eventType string, _ interface{}) error {
	p.events = append(p.events, eventType)
	return p.err
}

func sampleAppointment() *model.Appointment {
	return &model.Appointment{
		Base:          model.Base{ID: 7},
		ProviderID:    1,
		CustomerName:  "Alice",
		CustomerEmail: "alice@example.com",
		Date:          "2025-03-10",
		StartTime:     "10:00",
		EndTime:       "11:00",
		Status:        model.AppointmentStatusConfirmed,
	}
}

func TestNotify_SendsAndPublishes(t *testing.T) {
	sender := &stubSender{}
	queue := &stubQueue{}
	pub := &stubPublisher{}
	n := NewService(sender, queue, pub, nil)

	n.Notify(context.Background(), EventConfirmed, sampleAppointment())

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "alice@example.com", sender.sent[0].To)
	assert.Equal(t, "Votre rendez-vous est confirmé", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].Body, "10/03/2025")
	assert.Contains(t, sender.sent[0].Body, "confirmé")
	assert.Equal(t, []string{"appointment.confirmed"}, pub.events)
	assert.Empty(t, queue.failures)
}

func TestNotify_QueuesFailedDelivery(t *testing.T) {
	sender := &stubSender{err: errors.New("dial tcp: i/o timeout")}
	queue := &stubQueue{}
	n := NewService(sender, queue, nil, nil)

	n.Notify(context.Background(), EventCancelled, sampleAppointment())

	require.Len(t, queue.failures, 1)
	f := queue.failures[0]
	assert.Equal(t, "alice@example.com", f.Recipient)
	assert.Equal(t, "Annulation de votre rendez-vous", f.Subject)
	assert.Equal(t, email.ErrorCodeSMTP, f.ErrorCode)
	assert.Contains(t, f.ErrorMessage, "timeout")

	var p map[string]interface{}
	require.NoError(t, json.Unmarshal(f.Payload, &p))
	assert.Equal(t, float64(7), p["appointment_id"])
	assert.Equal(t, "appointment.cancelled", p["event"])
}

func TestNotify_CircuitOpenCode(t *testing.T) {
	sender := &stubSender{err: circuitbreaker.ErrOpen}
	queue := &stubQueue{}
	NewService(sender, queue, nil, nil).Notify(context.Background(), EventCreated, sampleAppointment())

	require.Len(t, queue.failures, 1)
	assert.Equal(t, email.ErrorCodeCircuitOpen, queue.failures[0].ErrorCode)
}

func TestNotify_FailuresNeverPanic(t *testing.T) {
	sender := &stubSender{err: errors.New("down")}
	queue := &stubQueue{err: errors.New("db down")}
	pub := &stubPublisher{err: errors.New("redis down")}
	n := NewService(sender, queue, pub, nil)

	assert.NotPanics(t, func() {
		n.Notify(context.Background(), EventRescheduled, sampleAppointment())
	})
}

func TestNotify_NoEmailSkipsSend(t *testing.T) {
	sender := &stubSender{}
	pub := &stubPublisher{}
	appt := sampleAppointment()
	appt.CustomerEmail = ""

	NewService(sender, &stubQueue{}, pub, nil).Notify(context.Background(), EventCreated, appt)
	assert.Empty(t, sender.sent)
	assert.Len(t, pub.events, 1)
}

func TestRender(t *testing.T) {
	appt := sampleAppointment()
	appt.CustomerName = "<script>"
	appt.Status = model.AppointmentStatusPending

	msg, err := Render(EventCreated, appt)
	require.NoError(t, err)
	assert.Equal(t, "Votre demande de rendez-vous", msg.Subject)
	assert.Contains(t, msg.Body, "en attente")
	assert.NotContains(t, msg.Body, "<script>")

	_, err = Render(Event("unknown"), appt)
	assert.Error(t, err)
}

func TestAsync(t *testing.T) {
	sender := &stubSender{}
	a := NewAsync(NewService(sender, &stubQueue{}, nil, nil))

	ctx, cancel := context.WithCancel(context.Background())
	appt := sampleAppointment()
	a.Notify(ctx, EventConfirmed, appt)
	cancel()
	appt.CustomerEmail = "changed@example.com"

	require.True(t, a.Wait(2*time.Second))
	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "alice@example.com", sender.sent[0].To)
}
