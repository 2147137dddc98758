package natsclient

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/petermyo/DecentralizeFileShare/config"
	"go.uber.org/zap"
)

const (
	clientName        = "decentralize-file-share"
	connectTimeout    = 5 * time.Second
	reconnectWait     = 2 * time.Second
	maxPendingPublish = 256
)

// Connect opens a NATS connection and its JetStream context. Connection state
// changes are logged on logger.
func Connect(cfg config.NATSConfig, logger *zap.Logger) (*nats.Conn, nats.JetStreamContext, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []nats.Option{
		nats.Name(clientName),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	conn, err := nats.Connect(URL(cfg), opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("nats: connect: %w", err)
	}

	js, err := conn.JetStream(nats.PublishAsyncMaxPending(maxPendingPublish))
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("nats: init jetstream: %w", err)
	}
	return conn, js, nil
}

// URL renders the server URL for cfg.
func URL(cfg config.NATSConfig) string {
	host, port := cfg.Host, cfg.Port
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = nats.DefaultPort
	}
	return fmt.Sprintf("nats://%s:%d", host, port)
}
