package control

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a control server (no TLS: it is meant for localhost).
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to '%s': %w", target, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(
	ctx context.Context,
	method string,
	in *structpb.Struct,
) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

func (c *Client) Start(ctx context.Context, settings StartSettings) (string, error) {
	in, err := settings.ToStruct()
	if err != nil {
		return "", fmt.Errorf("unable to serialize the settings: %w", err)
	}
	return c.call(ctx, methodStart, in)
}

func (c *Client) Stop(ctx context.Context) (string, error) {
	return c.call(ctx, methodStop, &structpb.Struct{})
}

func (c *Client) SaveReplay(ctx context.Context, path string) (string, error) {
	in, err := structpb.NewStruct(map[string]any{fieldPath: path})
	if err != nil {
		return "", fmt.Errorf("unable to serialize the request: %w", err)
	}
	return c.call(ctx, methodSaveReplay, in)
}
