// README: Fire-and-forget event publisher over RabbitMQ for downstream
// notification dispatch.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Publisher fans engine events out on a topic exchange. The engine never
// waits on delivery; callers treat errors as log-worthy, not fatal.
type Publisher struct {
	mu       sync.RWMutex
	ch       *amqp091.Channel
	exchange string
}

func NewPublisher(ch *amqp091.Channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange}
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", routingKey, err)
	}

	p.mu.RLock()
	ch := p.ch
	p.mu.RUnlock()

	err = ch.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now().UTC(),
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

// SwapChannel replaces the underlying channel after a reconnect.
func (p *Publisher) SwapChannel(ch *amqp091.Channel) {
	p.mu.Lock()
	p.ch = ch
	p.mu.Unlock()
}
