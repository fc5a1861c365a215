package publish

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client subscribes to a remote Broadcaster.
type Client struct {
	conn *grpc.ClientConn
}

func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("publish: could not connect to %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

type Subscription struct {
	stream grpc.ClientStream
}

// Subscribe opens a belief stream for session, or every session if empty.
func (c *Client) Subscribe(ctx context.Context, session string) (*Subscription, error) {
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], subscribeMethod, grpc.CallContentSubtype(Name))
	if err != nil {
		return nil, fmt.Errorf("publish: error creating stream: %w", err)
	}
	if err := stream.SendMsg(&SubscribeRequest{Session: session}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &Subscription{stream: stream}, nil
}

func (s *Subscription) Recv() (*Belief, error) {
	msg := new(Belief)
	if err := s.stream.RecvMsg(msg); err != nil {
		return nil, err
	}
	return msg, nil
}
