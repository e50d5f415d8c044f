package grpcserver

import (
	"context"

	"github.com/sugawarayuuta/sonnet"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the market service with wire request and response values.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with req and decodes the reply into resp. Either may
// be nil.
func (c *Client) Call(ctx context.Context, method string, req, resp any) error {
	in := new(structpb.Struct)
	if req != nil {
		b, err := sonnet.Marshal(req)
		if err != nil {
			return err
		}
		if err := protojson.Unmarshal(b, in); err != nil {
			return err
		}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	b, err := protojson.Marshal(out)
	if err != nil {
		return err
	}
	return sonnet.Unmarshal(b, resp)
}
