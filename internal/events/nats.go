package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

type PublisherMetrics interface {
	Published(err error)
	SetNATSConnected(connected bool)
}

type NATSPublisher struct {
	nc      *nats.Conn
	metrics PublisherMetrics
}

func NewNATSPublisher(url string, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("gocart"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.SetNATSConnected(false)
			}
			log.Printf("[NATS] disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			if m != nil {
				m.SetNATSConnected(true)
			}
			log.Printf("[NATS] reconnected to %s", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetNATSConnected(false)
			}
			log.Printf("[NATS] closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	if m != nil {
		m.SetNATSConnected(true)
	}
	return &NATSPublisher{nc: nc, metrics: m}, nil
}

func (p *NATSPublisher) Publish(ev BookingEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = p.nc.Publish(ev.Subject(), b)
	if p.metrics != nil {
		p.metrics.Published(err)
	}
	return err
}

// PaymentConfirmed is the payload of SubjectPaymentConfirmed.
type PaymentConfirmed struct {
	BookingID int64  `json:"booking_id"`
	Method    string `json:"method"`
}

// PaymentHandler applies one payment confirmation.
type PaymentHandler func(ctx context.Context, msg PaymentConfirmed) error

type paymentReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// SubscribePayments consumes SubjectPaymentConfirmed in a queue group, so
// several instances share the stream. Requests with a reply subject get
// {"ok":bool,"error":...} back.
func (p *NATSPublisher) SubscribePayments(queue string, timeout time.Duration, fn PaymentHandler) (*nats.Subscription, error) {
	return p.nc.QueueSubscribe(SubjectPaymentConfirmed, queue, func(m *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		reply := handlePayment(ctx, m.Data, fn)
		if m.Reply == "" {
			return
		}
		b, _ := json.Marshal(reply)
		if err := m.Respond(b); err != nil {
			log.Printf("[NATS] payment reply failed: %v", err)
		}
	})
}

func handlePayment(ctx context.Context, data []byte, fn PaymentHandler) paymentReply {
	var msg PaymentConfirmed
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[NATS] bad payment payload: %v", err)
		return paymentReply{Error: "invalid payload"}
	}
	if msg.BookingID <= 0 {
		return paymentReply{Error: "booking_id required"}
	}
	if err := fn(ctx, msg); err != nil {
		log.Printf("[NATS] payment booking_id=%d method=%s failed: %v", msg.BookingID, msg.Method, err)
		return paymentReply{Error: err.Error()}
	}
	return paymentReply{OK: true}
}

// Close drains subscriptions and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}
