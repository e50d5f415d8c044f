package grpcserver

import (
	"context"

	"github.com/sugawarayuuta/sonnet"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/goblin-trade/goblin-core-v1-sub000/api/wire"
)

/*
The market service has no generated stubs. Every method takes and returns a
google.protobuf.Struct holding the JSON shapes of package wire, so the gRPC
and HTTP surfaces stay identical.

Numbers travel as doubles inside a Struct. Lot amounts above 2^53 lose
precision on this transport.
*/

const ServiceName = "goblin.v1.Market"

type unaryFunc func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

// marketServer is the handler type checked by RegisterService.
type marketServer interface {
	method(name string) (unaryFunc, bool)
}

func (s *Server) method(name string) (unaryFunc, bool) {
	fn, ok := s.handlers[name]
	return fn, ok
}

func (s *Server) handlerTable() map[string]unaryFunc {
	return map[string]unaryFunc{
		"PlaceOrder":            s.placeOrder,
		"ReduceOrders":          s.reduceOrders,
		"CancelAll":             s.cancelAll,
		"PlaceMultiplePostOnly": s.placeMultiple,
		"Deposit":               s.balance(false),
		"Withdraw":              s.balance(true),
		"CollectFees":           s.collectFees,
		"GetMarket":             s.getMarket,
		"GetTrader":             s.getTrader,
		"GetOrder":              s.getOrder,
		"GetDepth":              s.getDepth,
		"ListOrders":            s.listOrders,
	}
}

var methodNames = []string{
	"PlaceOrder", "ReduceOrders", "CancelAll", "PlaceMultiplePostOnly",
	"Deposit", "Withdraw", "CollectFees",
	"GetMarket", "GetTrader", "GetOrder", "GetDepth", "ListOrders",
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*marketServer)(nil),
	Methods:     methodDescs(),
	Streams:     []grpc.StreamDesc{},
	Metadata:    "goblin/v1/market",
}

func methodDescs() []grpc.MethodDesc {
	out := make([]grpc.MethodDesc, 0, len(methodNames))
	for _, name := range methodNames {
		out = append(out, grpc.MethodDesc{MethodName: name, Handler: handler(name)})
	}
	return out
}

func handler(name string) func(srv any, ctx context.Context, dec func(any) error, icpt grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, icpt grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		fn, ok := srv.(marketServer).method(name)
		if !ok {
			return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", name)
		}
		if icpt == nil {
			return fn(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
		return icpt(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return fn(ctx, req.(*structpb.Struct))
		})
	}
}

// -------------------- Converters --------------------

func decode(in *structpb.Struct, v any) error {
	b, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "request: %v", err)
	}
	if err := sonnet.Unmarshal(b, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "request: %v", err)
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	b, err := sonnet.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Errorf(codes.Internal, "response: %v", err)
	}
	return out, nil
}

func toStatus(err error) error {
	switch wire.Classify(err) {
	case wire.ClassInvalid:
		return status.Error(codes.InvalidArgument, err.Error())
	case wire.ClassRejected:
		return status.Error(codes.FailedPrecondition, err.Error())
	case wire.ClassNotFound:
		return status.Error(codes.NotFound, err.Error())
	case wire.ClassUnavailable:
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
