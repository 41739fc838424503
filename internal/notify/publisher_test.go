package notify

import (
	"context"
	"testing"

	"github.com/rabbitmq/amqp091-go"
)

func TestSwapChannelReplacesChannel(t *testing.T) {
	p := NewPublisher(nil, "events")
	ch := &amqp091.Channel{}
	p.SwapChannel(ch)

	p.mu.RLock()
	got := p.ch
	p.mu.RUnlock()
	if got != ch {
		t.Fatal("channel not swapped")
	}
}

func TestPublishRejectsUnmarshalablePayload(t *testing.T) {
	p := NewPublisher(nil, "events")
	// Marshal fails before the channel is touched, so no broker is needed.
	if err := p.Publish(context.Background(), "booking.created", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}
