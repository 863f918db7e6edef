package remote

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"github.com/danielpatrickdp/reflex-engine/internal/stimulus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region client-struct
// Client calls a remote reflex engine.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient connects to the Reflex service at addr. Without options the
// connection uses insecure transport credentials.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// #endregion client-struct

// #region calls
// SubmitStimulus sends one stimulus.
func (c *Client) SubmitStimulus(ctx context.Context, s stimulus.Stimulus) error {
	in, err := toStruct(s)
	if err != nil {
		return fmt.Errorf("encode stimulus: %w", err)
	}
	if err := c.conn.Invoke(ctx, methodSubmitStimulus, in, new(emptypb.Empty)); err != nil {
		return fmt.Errorf("grpc SubmitStimulus: %w", err)
	}
	return nil
}

// SetProfile requests a personality switch.
func (c *Client) SetProfile(ctx context.Context, p profile.Profile) error {
	in, err := toStruct(profile.SpecOf(p))
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := c.conn.Invoke(ctx, methodSetProfile, in, new(emptypb.Empty)); err != nil {
		return fmt.Errorf("grpc SetProfile: %w", err)
	}
	return nil
}

// CurrentSnapshot fetches the latest snapshot.
func (c *Client) CurrentSnapshot(ctx context.Context) (state.Snapshot, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodCurrentSnapshot, &emptypb.Empty{}, out); err != nil {
		return state.Snapshot{}, fmt.Errorf("grpc CurrentSnapshot: %w", err)
	}
	return SnapshotFromStruct(out)
}

// Watch streams snapshots into fn until ctx ends, the server closes the
// stream, or fn returns an error. An empty name lets the server pick one.
func (c *Client) Watch(ctx context.Context, name string, depth int, fn func(state.Snapshot) error) error {
	fields := map[string]any{}
	if name != "" {
		fields["name"] = name
	}
	if depth > 0 {
		fields["depth"] = depth
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return fmt.Errorf("encode watch request: %w", err)
	}

	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], methodWatch)
	if err != nil {
		return fmt.Errorf("grpc Watch: %w", err)
	}
	if err := stream.SendMsg(in); err != nil {
		return fmt.Errorf("grpc Watch send: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("grpc Watch close send: %w", err)
	}
	for {
		out := new(structpb.Struct)
		if err := stream.RecvMsg(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("grpc Watch recv: %w", err)
		}
		snap, err := SnapshotFromStruct(out)
		if err != nil {
			return err
		}
		if err := fn(snap); err != nil {
			return err
		}
	}
}

// #endregion calls
