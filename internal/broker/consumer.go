package broker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer lê a fila de eventos e entrega cada corpo ao handler.
// Se a conexão cair, reconecta com espera crescente até o ctx ser cancelado.
type Consumer struct {
	URI      string
	Queue    string
	Tag      string
	Prefetch int
	Log      *slog.Logger

	MinBackoff time.Duration // padrão 1s
	MaxBackoff time.Duration // padrão 30s
}

func (c *Consumer) logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}

// Run bloqueia até o ctx terminar. Só retorna erro se a primeira conexão falhar,
// para o processo não subir sem broker.
func (c *Consumer) Run(ctx context.Context, handle func(body []byte)) error {
	minB, maxB := c.MinBackoff, c.MaxBackoff
	if minB <= 0 {
		minB = time.Second
	}
	if maxB < minB {
		maxB = 30 * time.Second
	}

	first := true
	backoff := minB
	for {
		err := c.consumeOnce(ctx, handle, func() {
			first = false
			backoff = minB
		})
		if ctx.Err() != nil {
			return nil
		}
		if first {
			return err
		}
		c.logger().Warn("rabbit_consumer_lost", "err", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxB {
			backoff = maxB
		}
	}
}

var errDeliveriesClosed = errors.New("deliveries channel closed")

func (c *Consumer) consumeOnce(ctx context.Context, handle func([]byte), connected func()) error {
	conn, err := amqp.Dial(c.URI)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return err
	}
	if c.Prefetch > 0 {
		if err := ch.Qos(c.Prefetch, 0, false); err != nil {
			return err
		}
	}
	deliveries, err := ch.Consume(c.Queue, c.Tag, true, false, false, false, nil)
	if err != nil {
		return err
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	connected()
	c.logger().Info("rabbit_consumer_started", "queue", c.Queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-closed:
			if e == nil {
				return errDeliveriesClosed
			}
			return e
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			handle(d.Body)
		}
	}
}
