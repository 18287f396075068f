// Package wake sends advisory wake-up signals to idle workers so they poll
// the queue without waiting for their next scheduled cycle.
package wake

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zulandar/graderqueue/internal/config"
	"github.com/zulandar/graderqueue/internal/models"
)

// Wire payloads of the wake protocol.
const (
	WakeMessage = "wakeup"
	AckMessage  = "ok"
)

// Transport delivers one wake signal to one worker.
type Transport interface {
	Wake(ctx context.Context, srv models.Server) error
}

// UDPTransport sends a datagram to the worker's wake address and waits for
// its acknowledgement.
type UDPTransport struct{}

// Wake implements Transport.
func (UDPTransport) Wake(ctx context.Context, srv models.Server) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", srv.WakeupAddr)
	if err != nil {
		return fmt.Errorf("wake: dial %s: %w", srv.WakeupAddr, err)
	}
	defer conn.Close()

	if err := bindDeadline(ctx, conn); err != nil {
		return fmt.Errorf("wake: set deadline for %s: %w", srv.WakeupAddr, err)
	}
	if _, err := conn.Write([]byte(WakeMessage)); err != nil {
		return fmt.Errorf("wake: send to %s: %w", srv.WakeupAddr, err)
	}

	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("wake: read ack from %s: %w", srv.WakeupAddr, err)
	}
	if string(buf[:n]) != AckMessage {
		return fmt.Errorf("wake: unexpected ack %q from %s", buf[:n], srv.WakeupAddr)
	}
	return nil
}

// bindDeadline bounds conn by ctx's deadline, if it has one.
func bindDeadline(ctx context.Context, conn interface{ SetDeadline(time.Time) error }) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	return conn.SetDeadline(deadline)
}

// RedisTransport publishes the wake message on a per-server channel.
type RedisTransport struct {
	client *redis.Client
	prefix string
}

// NewRedisTransport connects to the configured redis server.
func NewRedisTransport(c config.RedisConfig) *RedisTransport {
	return &RedisTransport{
		client: redis.NewClient(&redis.Options{
			Addr:     c.Addr,
			Password: c.Password,
			DB:       c.DB,
		}),
		prefix: c.ChannelPrefix,
	}
}

// Channel returns the channel a worker named name subscribes to.
func (t *RedisTransport) Channel(name string) string {
	return t.prefix + name
}

// Wake implements Transport. A publish nobody received counts as a failure.
func (t *RedisTransport) Wake(ctx context.Context, srv models.Server) error {
	n, err := t.client.Publish(ctx, t.Channel(srv.Name), WakeMessage).Result()
	if err != nil {
		return fmt.Errorf("wake: publish to %s: %w", t.Channel(srv.Name), err)
	}
	if n == 0 {
		return fmt.Errorf("wake: no subscriber on %s", t.Channel(srv.Name))
	}
	return nil
}

// Close releases the redis connection pool.
func (t *RedisTransport) Close() error {
	return t.client.Close()
}

// NewTransport builds the transport selected by c.Transport.
func NewTransport(c config.WakeConfig) (Transport, error) {
	switch c.Transport {
	case "", "udp":
		return UDPTransport{}, nil
	case "redis":
		return NewRedisTransport(c.Redis), nil
	default:
		return nil, fmt.Errorf("wake: unknown transport %q", c.Transport)
	}
}
