package grpcserver

import (
	"context"
	"time"

	"github.com/goblin-trade/goblin-core-v1-sub000/api/wire"
	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
	"github.com/goblin-trade/goblin-core-v1-sub000/service"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server adapts OrderService to gRPC.
type Server struct {
	svc      *service.OrderService
	conv     q.Converter
	log      *zap.SugaredLogger
	handlers map[string]unaryFunc
}

func NewServer(svc *service.OrderService, log *zap.SugaredLogger) *Server {
	s := &Server{svc: svc, conv: svc.Params().Converter(), log: log.Named("grpc")}
	s.handlers = s.handlerTable()
	return s
}

// NewGRPCServer returns a grpc.Server with the market service registered
// and request logging installed.
func NewGRPCServer(s *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.logUnary))
	g := grpc.NewServer(opts...)
	g.RegisterService(&serviceDesc, s)
	return g
}

func (s *Server) logUnary(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	if code == codes.Internal || code == codes.Unavailable {
		s.log.Errorw("call failed", "method", info.FullMethod, "code", code, "error", err)
	} else {
		s.log.Debugw("call", "method", info.FullMethod, "code", code, "took", time.Since(start))
	}
	return resp, err
}

// -------------------- Commands --------------------

func (s *Server) placeOrder(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req wire.PlaceOrderRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	trader, p, err := req.Decode()
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.svc.PlaceOrder(trader, p)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(wire.NewPlaceOrderResponse(s.conv, res))
}

func (s *Server) reduceOrders(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req wire.ReduceOrdersRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	trader, reqs, err := req.Decode()
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.svc.ReduceOrders(trader, reqs)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(wire.NewReduceResponse(s.conv, res))
}

func (s *Server) cancelAll(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req wire.TraderRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	trader, err := wire.ParseTrader(req.Trader)
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.svc.CancelAll(trader)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(wire.NewReduceResponse(s.conv, res))
}

func (s *Server) placeMultiple(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req wire.PlaceMultipleRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	trader, reqs, opts, err := req.Decode()
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.svc.PlaceMultiplePostOnly(trader, reqs, opts)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(wire.NewPlaceMultipleResponse(s.conv, res))
}

func (s *Server) balance(withdraw bool) unaryFunc {
	return func(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		var req wire.BalanceRequest
		if err := decode(in, &req); err != nil {
			return nil, err
		}
		trader, err := wire.ParseTrader(req.Trader)
		if err != nil {
			return nil, toStatus(err)
		}
		op := s.svc.Deposit
		if withdraw {
			op = s.svc.Withdraw
		}
		t, err := op(trader, q.BaseLots(req.BaseLots), q.QuoteLots(req.QuoteLots))
		if err != nil {
			return nil, toStatus(err)
		}
		return encode(wire.NewTraderView(s.conv, trader, t))
	}
}

func (s *Server) collectFees(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	fees, err := s.svc.CollectFees()
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(wire.FeesView{Collected: wire.Quote(s.conv, fees)})
}

// -------------------- Queries --------------------

func (s *Server) getMarket(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	m, err := s.svc.Market()
	if err != nil {
		return nil, toStatus(err)
	}
	seq, err := s.svc.AppliedSeq()
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(wire.NewMarketView(s.conv, m, seq))
}

func (s *Server) getTrader(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req wire.TraderRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	trader, err := wire.ParseTrader(req.Trader)
	if err != nil {
		return nil, toStatus(err)
	}
	t, err := s.svc.Trader(trader)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(wire.NewTraderView(s.conv, trader, t))
}

func (s *Server) getOrder(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req wire.OrderID
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	id, err := req.Domain()
	if err != nil {
		return nil, toStatus(err)
	}
	o, side, ok, err := s.svc.Order(id)
	if err != nil {
		return nil, toStatus(err)
	}
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no order at %d/%d", req.Price, req.Index)
	}
	return encode(wire.NewOrderView(s.conv, id, side, o))
}

type depthRequest struct {
	Levels int `json:"levels"`
}

func (s *Server) getDepth(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req depthRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	bids, err := s.svc.Depth(state.Bid, req.Levels)
	if err != nil {
		return nil, toStatus(err)
	}
	asks, err := s.svc.Depth(state.Ask, req.Levels)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(wire.NewDepthView(s.conv, bids, asks))
}

type listRequest struct {
	Side  string `json:"side"`
	Limit int    `json:"limit"`
}

type listResponse struct {
	Orders []wire.OrderView `json:"orders"`
}

func (s *Server) listOrders(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req listRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	side, err := wire.ParseSide(req.Side)
	if err != nil {
		return nil, toStatus(err)
	}
	rs, err := s.svc.Orders(side, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(listResponse{Orders: wire.Orders(s.conv, side, rs)})
}
