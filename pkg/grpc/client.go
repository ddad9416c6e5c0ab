package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/discovery"
	"github.com/example/storefront/pkg/models"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// OrderView is the decoded GetOrder response.
type OrderView struct {
	ID         int64              `json:"id"`
	Email      string             `json:"email"`
	TotalCents int64              `json:"total_cents"`
	CreatedAt  int64              `json:"created_at"`
	Items      []models.OrderLine `json:"items"`
}

// OrderClient is a typed client for the storefront OrderService.
type OrderClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderClient(cc grpc.ClientConnInterface) *OrderClient {
	return &OrderClient{cc: cc}
}

func (c *OrderClient) ListProducts(ctx context.Context) ([]models.Product, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, listProductsMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	products := []models.Product{}
	if err := decodeMessage(out, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *OrderClient) CreateOrder(ctx context.Context, email, sku string, quantity int) (int64, error) {
	in, err := structpb.NewStruct(map[string]interface{}{
		"email": email,
		"items": []interface{}{
			map[string]interface{}{"sku": sku, "quantity": quantity},
		},
	})
	if err != nil {
		return 0, err
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, createOrderMethod, in, out); err != nil {
		return 0, err
	}
	return int64(out.GetFields()["id"].GetNumberValue()), nil
}

func (c *OrderClient) GetOrder(ctx context.Context, id int64) (*OrderView, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getOrderMethod, wrapperspb.Int64(id), out); err != nil {
		return nil, err
	}
	var view OrderView
	if err := decodeMessage(out, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func decodeMessage(m proto.Message, dest interface{}) error {
	data, err := protojson.Marshal(m)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Dial connects to the OrderService. When sd is set, the first instance
// registered under name replaces fallback.
func Dial(ctx context.Context, sd *discovery.ServiceDiscovery, name, fallback string, logger *zap.Logger) (*grpc.ClientConn, error) {
	target := fallback
	if sd != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		instances, err := sd.Discover(ctx, name)
		if err == nil && len(instances) > 0 {
			target = instances[0].Addr()
			logger.Info("Discovered order service", zap.String("address", target))
		} else {
			logger.Info("Using default address for order service", zap.String("address", target))
		}
	}

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to order service: %w", err)
	}
	return conn, nil
}
