// README: RabbitMQ connection setup with retry for the event publisher.
package infra

import (
	"fmt"
	"log"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// ConnectRMQ dials RabbitMQ, retrying while the broker comes up, and declares
// the topic exchange used for engine events.
func ConnectRMQ(url, exchange string) (*amqp091.Connection, *amqp091.Channel, error) {
	var conn *amqp091.Connection
	var ch *amqp091.Channel
	var err error

	for i := 0; i < 10; i++ {
		conn, err = amqp091.Dial(url)
		if err == nil {
			ch, err = conn.Channel()
			if err == nil {
				if err = ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
					return nil, nil, fmt.Errorf("declare exchange: %w", err)
				}
				return conn, ch, nil
			}
		}
		log.Printf("RabbitMQ not ready, retrying... (%d/10)", i+1)
		time.Sleep(3 * time.Second)
	}

	return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
}
