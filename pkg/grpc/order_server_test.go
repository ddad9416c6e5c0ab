package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func newTestClient(t *testing.T) *OrderClient {
	t.Helper()
	ctx := context.Background()

	store, err := repository.NewStore(&config.DatabaseConfig{URL: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))
	_, err = store.SeedCatalog(ctx)
	require.NoError(t, err)

	server := NewOrderServer(&config.GRPCConfig{}, service.NewOrderService(store, zap.NewNop()), zap.NewNop())
	lis := bufconn.Listen(1 << 20)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewOrderClient(conn)
}

func TestListProducts(t *testing.T) {
	client := newTestClient(t)

	products, err := client.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "SKU-1", products[0].SKU)
	assert.Equal(t, "T-Shirt", products[0].Title)
	assert.Equal(t, int64(1990), products[0].PriceCents)
}

func TestCreateAndGetOrder(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	id, err := client.CreateOrder(ctx, "a@b.com", "SKU-2", 3)
	require.NoError(t, err)
	assert.Positive(t, id)

	order, err := client.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, order.ID)
	assert.Equal(t, "a@b.com", order.Email)
	assert.Equal(t, int64(4470), order.TotalCents)
	assert.Positive(t, order.CreatedAt)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "SKU-2", order.Items[0].SKU)
	assert.Equal(t, "Cap", order.Items[0].Title)
	assert.Equal(t, 3, order.Items[0].Quantity)
}

func TestErrorCodes(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	_, err := client.CreateOrder(ctx, "a@b.com", "NOPE", 1)
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.CreateOrder(ctx, "", "SKU-1", 1)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.CreateOrder(ctx, "a@b.com", "SKU-1", 0)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.CreateOrder(ctx, "a@b.com", "SKU-1", 5000000000000000)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "quantity is too large")

	_, err = client.GetOrder(ctx, 999)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestCreateOrderWithoutItems(t *testing.T) {
	client := newTestClient(t)

	in, err := structpb.NewStruct(map[string]interface{}{"email": "a@b.com"})
	require.NoError(t, err)

	err = client.cc.Invoke(context.Background(), createOrderMethod, in, new(structpb.Struct))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "email and items are required")
}
