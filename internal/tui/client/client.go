package client

import (
	"context"
	"fmt"

	"github.com/matheus3301/souk/internal/rpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Client wraps gRPC connections to the daemon.
type Client struct {
	conn     *grpc.ClientConn
	health   healthpb.HealthClient
	Session  *rpc.SessionClient
	Chat     *rpc.ChatClient
	Activity *rpc.ActivityClient
	Market   *rpc.MarketClient
}

// New dials the daemon's Unix domain socket and returns typed service clients.
func New(socketPath string) (*Client, error) {
	conn, err := rpc.Dial(socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}

	return &Client{
		conn:     conn,
		health:   healthpb.NewHealthClient(conn),
		Session:  rpc.NewSessionClient(conn),
		Chat:     rpc.NewChatClient(conn),
		Activity: rpc.NewActivityClient(conn),
		Market:   rpc.NewMarketClient(conn),
	}, nil
}

// Ping runs a health check against the daemon.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{}, grpc.CallContentSubtype("proto"))
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("daemon %s", resp.GetStatus())
	}
	return nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
