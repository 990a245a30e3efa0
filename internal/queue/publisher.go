package queue

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is the durable queue notifications are routed to.
const DefaultQueue = "portal.notifications"

// Publisher publishes notification events to RabbitMQ.  Each publish opens
// its own connection; notification volume is a handful per state change.
type Publisher struct {
	URL   string
	Queue string
}

func NewPublisher(url, queue string) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Publisher{URL: url, Queue: queue}
}

// Notify publishes ev as a persistent JSON message.  Errors are logged and
// returned so the caller can decide to ignore them.
func (p *Publisher) Notify(ctx context.Context, ev NotificationEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}

// LogNotifier writes events to the process log instead of a broker.  It is
// used when no broker URL is configured.  Only the data keys are logged;
// values can carry live reset and magic-link tokens.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, ev NotificationEvent) error {
	var keys []string
	for k := range ev.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	log.Printf("notify: %s project=%s to=%s keys=%v", ev.Type, ev.ProjectID, ev.To, keys)
	return nil
}
