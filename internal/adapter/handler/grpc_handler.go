package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/core/lifecycle"
	"github.com/rl1809/pizzeria/internal/core/service"
)

// CodecName is the content-subtype clients must request ("application/grpc+json").
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Callers identify themselves with these metadata keys, mirroring the
// X-User-ID and X-Guest-ID HTTP headers.
const (
	mdUserID     = "x-user-id"
	mdGuestID    = "x-guest-id"
	mdAdminToken = "x-admin-token"
)

type GetOrderRequest struct {
	OrderID string `json:"orderId"`
}

// ListOrdersRequest is empty; the caller's orders are listed.
type ListOrdersRequest struct{}

type ListOrdersReply struct {
	Active    []domain.Order `json:"active"`
	Completed []domain.Order `json:"completed"`
}

type UpdateStatusRequest struct {
	OrderID string             `json:"orderId"`
	Status  domain.OrderStatus `json:"status"`
}

// OrderTrackingServer is the server API of pizzeria.OrderTracking.
type OrderTrackingServer interface {
	GetOrder(ctx context.Context, req *GetOrderRequest) (*domain.Order, error)
	ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersReply, error)
	UpdateStatus(ctx context.Context, req *UpdateStatusRequest) (*domain.Order, error)
	WatchOrder(req *GetOrderRequest, stream grpc.ServerStream) error
}

func RegisterOrderTrackingServer(s grpc.ServiceRegistrar, srv OrderTrackingServer) {
	s.RegisterService(&OrderTrackingServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](method string, call func(OrderTrackingServer, context.Context, *Req) (Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderTrackingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/pizzeria.OrderTracking/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderTrackingServer), ctx, req.(*Req))
		})
	}
}

var OrderTrackingServiceDesc = grpc.ServiceDesc{
	ServiceName: "pizzeria.OrderTracking",
	HandlerType: (*OrderTrackingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetOrder", Handler: unaryHandler("GetOrder", OrderTrackingServer.GetOrder)},
		{MethodName: "ListOrders", Handler: unaryHandler("ListOrders", OrderTrackingServer.ListOrders)},
		{MethodName: "UpdateStatus", Handler: unaryHandler("UpdateStatus", OrderTrackingServer.UpdateStatus)},
	},
	Streams: []grpc.StreamDesc{{
		StreamName: "WatchOrder",
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(GetOrderRequest)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return srv.(OrderTrackingServer).WatchOrder(in, stream)
		},
		ServerStreams: true,
	}},
	Metadata: "pizzeria/order_tracking",
}

type GRPCHandler struct {
	orders     *service.OrderService
	board      *service.AdminBoard
	adminToken string
	logger     *zap.Logger
}

var _ OrderTrackingServer = (*GRPCHandler)(nil)

func NewGRPCHandler(orders *service.OrderService, board *service.AdminBoard, adminToken string, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{orders: orders, board: board, adminToken: adminToken, logger: logger}
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *GetOrderRequest) (*domain.Order, error) {
	if req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "orderId is required")
	}
	order, err := h.orders.GetOrder(ctx, req.OrderID, callerFrom(ctx))
	if err != nil {
		return nil, h.toStatus(err)
	}
	return order, nil
}

func (h *GRPCHandler) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersReply, error) {
	var (
		list []domain.Order
		err  error
	)
	if c := callerFrom(ctx); c.UserID != "" {
		list, err = h.orders.ListUserOrders(ctx, c.UserID)
	} else {
		list, err = h.orders.ListGuestOrders(ctx, c.GuestID)
	}
	if err != nil {
		return nil, h.toStatus(err)
	}
	active, completed := service.SplitActive(list)
	return &ListOrdersReply{Active: nonNil(active), Completed: nonNil(completed)}, nil
}

// UpdateStatus is the operator path and requires the admin token in the
// x-admin-token metadata key.
func (h *GRPCHandler) UpdateStatus(ctx context.Context, req *UpdateStatusRequest) (*domain.Order, error) {
	if err := h.authorize(ctx); err != nil {
		return nil, err
	}
	order, err := h.board.SetStatus(ctx, req.OrderID, req.Status)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return &order, nil
}

// WatchOrder sends the order's current state, then every status change,
// and ends once the order is completed.
func (h *GRPCHandler) WatchOrder(req *GetOrderRequest, stream grpc.ServerStream) error {
	ctx := stream.Context()
	updates, cancel := h.orders.Subscribe(req.OrderID)
	defer cancel()

	order, err := h.GetOrder(ctx, req)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(order); err != nil {
		return err
	}
	last := order.Status

	for last != domain.OrderStatusCompleted {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case o, ok := <-updates:
			if !ok {
				return nil
			}
			if err := stream.SendMsg(&o); err != nil {
				return err
			}
			if !o.Pending {
				last = o.Status
			}
		}
	}
	return nil
}

func (h *GRPCHandler) authorize(ctx context.Context) error {
	if h.adminToken == "" {
		return status.Error(codes.PermissionDenied, "admin access disabled")
	}
	got := firstValue(ctx, mdAdminToken)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.adminToken)) != 1 {
		return status.Error(codes.Unauthenticated, "invalid admin token")
	}
	return nil
}

func firstValue(ctx context.Context, key string) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func callerFrom(ctx context.Context) service.Caller {
	return service.Caller{UserID: firstValue(ctx, mdUserID), GuestID: firstValue(ctx, mdGuestID)}
}

func (h *GRPCHandler) toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		return status.Error(codes.NotFound, err.Error())
	case service.IsValidation(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, lifecycle.ErrRegression),
		errors.Is(err, lifecycle.ErrSkip),
		errors.Is(err, lifecycle.ErrWrongBranch):
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	h.logger.Error("grpc request failed", zap.Error(err))
	return status.Error(codes.Internal, "internal error")
}

// TrackingClient calls pizzeria.OrderTracking with the JSON codec.
type TrackingClient struct {
	conn grpc.ClientConnInterface
}

func NewTrackingClient(conn grpc.ClientConnInterface) *TrackingClient {
	return &TrackingClient{conn: conn}
}

// AsCaller returns a context whose outgoing calls identify as c.
func AsCaller(ctx context.Context, c service.Caller) context.Context {
	var kv []string
	if c.UserID != "" {
		kv = append(kv, mdUserID, c.UserID)
	}
	if c.GuestID != "" {
		kv = append(kv, mdGuestID, c.GuestID)
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

func (c *TrackingClient) GetOrder(ctx context.Context, req *GetOrderRequest) (*domain.Order, error) {
	out := new(domain.Order)
	err := c.conn.Invoke(ctx, "/pizzeria.OrderTracking/GetOrder", req, out, grpc.CallContentSubtype(CodecName))
	return out, err
}

func (c *TrackingClient) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersReply, error) {
	out := new(ListOrdersReply)
	err := c.conn.Invoke(ctx, "/pizzeria.OrderTracking/ListOrders", req, out, grpc.CallContentSubtype(CodecName))
	return out, err
}

func (c *TrackingClient) UpdateStatus(ctx context.Context, req *UpdateStatusRequest, adminToken string) (*domain.Order, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, mdAdminToken, adminToken)
	out := new(domain.Order)
	err := c.conn.Invoke(ctx, "/pizzeria.OrderTracking/UpdateStatus", req, out, grpc.CallContentSubtype(CodecName))
	return out, err
}

// WatchOrder calls fn for each streamed order until the stream ends.
func (c *TrackingClient) WatchOrder(ctx context.Context, req *GetOrderRequest, fn func(domain.Order)) error {
	stream, err := c.conn.NewStream(ctx, &OrderTrackingServiceDesc.Streams[0],
		"/pizzeria.OrderTracking/WatchOrder", grpc.CallContentSubtype(CodecName))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(req); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		var o domain.Order
		if err := stream.RecvMsg(&o); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		fn(o)
	}
}
