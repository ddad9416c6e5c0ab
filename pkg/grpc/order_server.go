package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/service"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// OrderServer exposes the order service over gRPC.
type OrderServer struct {
	orders *service.OrderService
	logger *zap.Logger
	config *config.GRPCConfig
	srv    *grpc.Server
}

func NewOrderServer(cfg *config.GRPCConfig, orders *service.OrderService, logger *zap.Logger) *OrderServer {
	s := &OrderServer{
		orders: orders,
		logger: logger,
		config: cfg,
		srv:    grpc.NewServer(),
	}
	RegisterOrderServiceServer(s.srv, s)
	reflection.Register(s.srv)
	return s
}

func (s *OrderServer) Start() error {
	addr := s.config.Addr()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.logger.Info("Order gRPC service started", zap.String("address", addr))
	return s.Serve(lis)
}

func (s *OrderServer) Serve(lis net.Listener) error {
	return s.srv.Serve(lis)
}

func (s *OrderServer) Stop() {
	s.srv.GracefulStop()
}

func (s *OrderServer) ListProducts(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	products, err := s.orders.ListProducts(ctx)
	if err != nil {
		return nil, s.toStatus(err)
	}

	values := make([]interface{}, len(products))
	for i, p := range products {
		values[i] = productFields(&p)
	}
	list, err := structpb.NewList(values)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode products")
	}
	return list, nil
}

func (s *OrderServer) CreateOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	body, err := protojson.Marshal(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed request")
	}

	parsed, err := service.ParseOrderRequest(body)
	if err != nil {
		return nil, s.toStatus(err)
	}
	if parsed.Dropped > 0 {
		s.logger.Warn("Ignoring extra order items", zap.Int("dropped", parsed.Dropped))
	}

	id, err := s.orders.CreateOrder(ctx, parsed.Email, parsed.SKU, parsed.Quantity)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{"id": id})
}

func (s *OrderServer) GetOrder(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	order, lines, err := s.orders.GetOrder(ctx, req.GetValue())
	if err != nil {
		return nil, s.toStatus(err)
	}
	if order == nil {
		return nil, status.Error(codes.NotFound, "order not found")
	}

	items := make([]interface{}, len(lines))
	for i, l := range lines {
		items[i] = map[string]interface{}{
			"id":          l.ID,
			"product_id":  l.ProductID,
			"sku":         l.SKU,
			"title":       l.Title,
			"price_cents": l.PriceCents,
			"quantity":    l.Quantity,
		}
	}

	return structpb.NewStruct(map[string]interface{}{
		"id":          order.ID,
		"email":       order.Email,
		"total_cents": order.TotalCents,
		"created_at":  order.CreatedAt.Unix(),
		"items":       items,
	})
}

func (s *OrderServer) toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		return status.Error(codes.NotFound, "SKU not found")
	case errors.Is(err, service.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		s.logger.Error("gRPC request failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

func productFields(p *models.Product) map[string]interface{} {
	return map[string]interface{}{
		"id":          p.ID,
		"sku":         p.SKU,
		"title":       p.Title,
		"price_cents": p.PriceCents,
	}
}
