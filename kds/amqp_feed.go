package kds

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/yeremiapane/waiter-pos/models"
	"github.com/yeremiapane/waiter-pos/utils"
	"golang.org/x/time/rate"
)

// AMQPFeed consumes server push events relayed through a RabbitMQ topic
// exchange. The routing key carries the event name and the body its payload.
type AMQPFeed struct {
	URL      string
	Exchange string
	Keys     []string
	Prefetch int

	Limiter *rate.Limiter
}

func NewAMQPFeed(url, exchange string) *AMQPFeed {
	return &AMQPFeed{
		URL:      url,
		Exchange: exchange,
		Keys:     []string{"#"},
		Prefetch: 20,
		Limiter:  rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

func (f *AMQPFeed) Run(ctx context.Context, sink func(models.ExternalEvent)) error {
	for {
		if err := f.Limiter.Wait(ctx); err != nil {
			return nil
		}
		err := f.consume(ctx, sink)
		if ctx.Err() != nil {
			return nil
		}
		utils.ErrorLogger.Errorf("AMQP feed dropped: %v", err)
	}
}

func (f *AMQPFeed) consume(ctx context.Context, sink func(models.ExternalEvent)) error {
	conn, err := amqp.Dial(f.URL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(f.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", f.Exchange, err)
	}
	// one private queue per device, gone when the device disconnects
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	for _, key := range f.Keys {
		if err := ch.QueueBind(q.Name, key, f.Exchange, false, nil); err != nil {
			return fmt.Errorf("queue bind %s: %w", key, err)
		}
	}
	if err := ch.Qos(f.Prefetch, 0, false); err != nil {
		return err
	}
	msgs, err := ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		return err
	}
	closeCh := ch.NotifyClose(make(chan *amqp.Error, 1))

	utils.InfoLogger.WithField("exchange", f.Exchange).Info("AMQP feed connected")
	sink(models.ExternalEvent{Kind: models.EventOrderChanged, ReceivedAt: time.Now()})

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-closeCh:
			if e != nil {
				return fmt.Errorf("channel closed: %s", e.Reason)
			}
			return errors.New("channel closed")
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			if ev, ok := decodeDelivery(d.RoutingKey, d.Body); ok {
				sink(ev)
			}
			_ = d.Ack(false)
		}
	}
}

// decodeDelivery accepts either a bare payload under an event routing key or a
// full {"event","data"} envelope.
func decodeDelivery(routingKey string, body []byte) (models.ExternalEvent, bool) {
	if env, ok := asEnvelope(body); ok {
		return decodeEnvelope(env)
	}
	ev, err := models.DecodeEvent(routingKey, body)
	if err != nil {
		if errors.Is(err, models.ErrUnknownEvent) {
			utils.InfoLogger.WithField("event", routingKey).Debug("Ignoring unknown event")
		} else {
			utils.ErrorLogger.Errorf("Bad %s payload: %v", routingKey, err)
		}
		return models.ExternalEvent{}, false
	}
	return ev, true
}
