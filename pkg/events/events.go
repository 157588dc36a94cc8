package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/justbook-waitlist/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url, clientName string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "bytes", len(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(toMessage(msg))
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(toMessage(msg))
	})
	return err
}

func (n *NATSEventBus) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}

func toMessage(msg *nats.Msg) *Message {
	now := time.Now()
	id := ""
	if msg.Header != nil {
		id = msg.Header.Get(nats.MsgIdHdr)
	}
	if id == "" {
		id = fmt.Sprintf("%d", now.UnixNano())
	}
	return &Message{
		Subject:   msg.Subject,
		Data:      msg.Data,
		Timestamp: now,
		ID:        id,
	}
}

// Subjects
const (
	WaitlistAll          = "waitlist.>"
	WaitlistJoined       = "waitlist.joined"
	WaitlistUnsubscribed = "waitlist.unsubscribed"
	SurveyTapped         = "waitlist.survey.tapped"
)

// Event payloads
type WaitlistJoinedEvent struct {
	EventID  string    `json:"event_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
	Signups  int       `json:"signups"`
	Notified bool      `json:"notified"`
}

type WaitlistUnsubscribedEvent struct {
	EventID  string    `json:"event_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name,omitempty"`
	LeftAt   time.Time `json:"left_at"`
	Signups  int       `json:"signups"`
	Notified bool      `json:"notified"`
}

type SurveyTappedEvent struct {
	EventID    string    `json:"event_id"`
	SurveyTaps int       `json:"survey_taps"`
	TappedAt   time.Time `json:"tapped_at"`
}
