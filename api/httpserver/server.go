package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/goblin-trade/goblin-core-v1-sub000/api/wire"
	q "github.com/goblin-trade/goblin-core-v1-sub000/domain/quantities"
	"github.com/goblin-trade/goblin-core-v1-sub000/domain/state"
	"github.com/goblin-trade/goblin-core-v1-sub000/service"
	"github.com/labstack/echo/v4"
	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"
)

// Server is the REST and websocket surface of the market.
type Server struct {
	svc  *service.OrderService
	conv q.Converter
	hub  *Hub
	log  *zap.SugaredLogger
	e    *echo.Echo
}

func New(svc *service.OrderService, hub *Hub, log *zap.SugaredLogger) *Server {
	s := &Server{
		svc:  svc,
		conv: svc.Params().Converter(),
		hub:  hub,
		log:  log.Named("http"),
		e:    echo.New(),
	}
	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.JSONSerializer = sonnetSerializer{}
	s.e.Use(s.logRequests)
	s.routes()
	return s
}

func (s *Server) routes() {
	v1 := s.e.Group("/v1")

	v1.POST("/orders", s.placeOrder)
	v1.POST("/orders/reduce", s.reduceOrders)
	v1.POST("/orders/cancel-all", s.cancelAll)
	v1.POST("/orders/batch", s.placeMultiple)
	v1.POST("/deposits", s.balance(false))
	v1.POST("/withdrawals", s.balance(true))
	v1.POST("/fees/collect", s.collectFees)

	v1.GET("/market", s.getMarket)
	v1.GET("/traders/:trader", s.getTrader)
	v1.GET("/orders/:price/:index", s.getOrder)
	v1.GET("/depth", s.getDepth)
	v1.GET("/book/:side", s.listOrders)

	s.e.GET("/stream", s.stream)
	s.e.GET("/healthz", s.health)
}

func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	s.log.Infow("listening", "addr", addr)
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		status := c.Response().Status
		if status >= http.StatusInternalServerError {
			s.log.Errorw("request failed", "method", c.Request().Method, "path", c.Path(), "status", status, "error", err)
		} else {
			s.log.Debugw("request", "method", c.Request().Method, "path", c.Path(), "status", status, "took", time.Since(start))
		}
		return nil
	}
}

// -------------------- Commands --------------------

func (s *Server) placeOrder(c echo.Context) error {
	var req wire.PlaceOrderRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	trader, p, err := req.Decode()
	if err != nil {
		return toHTTP(err)
	}
	res, err := s.svc.PlaceOrder(trader, p)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, wire.NewPlaceOrderResponse(s.conv, res))
}

func (s *Server) reduceOrders(c echo.Context) error {
	var req wire.ReduceOrdersRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	trader, reqs, err := req.Decode()
	if err != nil {
		return toHTTP(err)
	}
	res, err := s.svc.ReduceOrders(trader, reqs)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, wire.NewReduceResponse(s.conv, res))
}

func (s *Server) cancelAll(c echo.Context) error {
	var req wire.TraderRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	trader, err := wire.ParseTrader(req.Trader)
	if err != nil {
		return toHTTP(err)
	}
	res, err := s.svc.CancelAll(trader)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, wire.NewReduceResponse(s.conv, res))
}

func (s *Server) placeMultiple(c echo.Context) error {
	var req wire.PlaceMultipleRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	trader, reqs, opts, err := req.Decode()
	if err != nil {
		return toHTTP(err)
	}
	res, err := s.svc.PlaceMultiplePostOnly(trader, reqs, opts)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, wire.NewPlaceMultipleResponse(s.conv, res))
}

func (s *Server) balance(withdraw bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req wire.BalanceRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		trader, err := wire.ParseTrader(req.Trader)
		if err != nil {
			return toHTTP(err)
		}
		op := s.svc.Deposit
		if withdraw {
			op = s.svc.Withdraw
		}
		t, err := op(trader, q.BaseLots(req.BaseLots), q.QuoteLots(req.QuoteLots))
		if err != nil {
			return toHTTP(err)
		}
		return c.JSON(http.StatusOK, wire.NewTraderView(s.conv, trader, t))
	}
}

func (s *Server) collectFees(c echo.Context) error {
	fees, err := s.svc.CollectFees()
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, wire.FeesView{Collected: wire.Quote(s.conv, fees)})
}

// -------------------- Queries --------------------

// health answers 503 once the service refuses commands. Dropped events are
// reported but do not fail the check.
func (s *Server) health(c echo.Context) error {
	h, err := s.svc.Health()
	if err != nil {
		return toHTTP(err)
	}
	code := http.StatusOK
	if !h.OK() {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, h)
}

func (s *Server) getMarket(c echo.Context) error {
	m, err := s.svc.Market()
	if err != nil {
		return toHTTP(err)
	}
	seq, err := s.svc.AppliedSeq()
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, wire.NewMarketView(s.conv, m, seq))
}

func (s *Server) getTrader(c echo.Context) error {
	trader, err := wire.ParseTrader(c.Param("trader"))
	if err != nil {
		return toHTTP(err)
	}
	t, err := s.svc.Trader(trader)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, wire.NewTraderView(s.conv, trader, t))
}

func (s *Server) getOrder(c echo.Context) error {
	price, err := strconv.ParseUint(c.Param("price"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid price")
	}
	index, err := strconv.ParseUint(c.Param("index"), 10, 8)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid index")
	}
	id, err := wire.OrderID{Price: price, Index: uint8(index)}.Domain()
	if err != nil {
		return toHTTP(err)
	}
	o, side, ok, err := s.svc.Order(id)
	if err != nil {
		return toHTTP(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}
	return c.JSON(http.StatusOK, wire.NewOrderView(s.conv, id, side, o))
}

func (s *Server) getDepth(c echo.Context) error {
	levels, err := intQuery(c, "levels")
	if err != nil {
		return err
	}
	bids, err := s.svc.Depth(state.Bid, levels)
	if err != nil {
		return toHTTP(err)
	}
	asks, err := s.svc.Depth(state.Ask, levels)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, wire.NewDepthView(s.conv, bids, asks))
}

func (s *Server) listOrders(c echo.Context) error {
	side, err := wire.ParseSide(c.Param("side"))
	if err != nil {
		return toHTTP(err)
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		return err
	}
	rs, err := s.svc.Orders(side, limit)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, wire.Orders(s.conv, side, rs))
}

func (s *Server) stream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	s.hub.serve(c.Request().Context(), conn)
	return nil
}

// -------------------- Helpers --------------------

func intQuery(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return v, nil
}

func toHTTP(err error) error {
	switch wire.Classify(err) {
	case wire.ClassInvalid:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case wire.ClassRejected:
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case wire.ClassNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case wire.ClassUnavailable:
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
}

// sonnetSerializer swaps echo's encoding/json for sonnet.
type sonnetSerializer struct{}

func (sonnetSerializer) Serialize(c echo.Context, i any, _ string) error {
	return sonnet.NewEncoder(c.Response()).Encode(i)
}

func (sonnetSerializer) Deserialize(c echo.Context, i any) error {
	if err := sonnet.NewDecoder(c.Request().Body).Decode(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json: "+err.Error()).SetInternal(err)
	}
	return nil
}
