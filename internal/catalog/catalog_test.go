package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/richxcame/pizzaguard/pkg/cache"
	"github.com/richxcame/pizzaguard/pkg/httpclient"
	redisclient "github.com/richxcame/pizzaguard/pkg/redis"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const menu = `
products:
  - id: margherita
    name: Classic Margherita
    base_price: 850
    is_available: true
    sizes:
      - { name: Large, price_modifier: 2130 }
    crusts:
      - { name: Sausage, price_modifier: 600 }
    toppings:
      - { name: Olives, price: 100, is_available: true }
      - { name: Anchovies, price: 90, is_available: false }
`

func TestParseMenu(t *testing.T) {
	repo, err := Parse([]byte(menu))
	require.NoError(t, err)
	assert.Equal(t, 1, repo.Len())

	p, err := repo.GetProduct(context.Background(), "margherita")
	require.NoError(t, err)
	assert.True(t, p.BasePrice.Equal(decimal.NewFromInt(850)))

	size, ok := p.Size("Large")
	require.True(t, ok)
	assert.True(t, size.PriceModifier.Equal(decimal.NewFromInt(2130)))

	_, ok = p.Topping("Anchovies")
	assert.False(t, ok, "unavailable topping")

	_, err = repo.GetProduct(context.Background(), "hawaiian")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestParseMenuRejectsMissingID(t *testing.T) {
	_, err := Parse([]byte("products:\n  - name: nameless\n    base_price: 1\n"))
	assert.Error(t, err)
}

func TestLoadShippedMenu(t *testing.T) {
	repo, err := LoadFile("../../configs/menu.yaml")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, repo.Len(), 3)
}

func TestRemoteRepository(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/products/margherita":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":true,"data":{"id":"margherita","base_price":"850","is_available":true}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	repo := NewRemoteRepository(httpclient.NewClient(srv.URL, time.Second))

	p, err := repo.GetProduct(context.Background(), "margherita")
	require.NoError(t, err)
	assert.Equal(t, "margherita", p.ID)
	assert.True(t, p.BasePrice.Equal(decimal.NewFromInt(850)))

	_, err = repo.GetProduct(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCachedRepositoryLoadsOnMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet("catalog:product:margherita").RedisNil()
	mock.ExpectSet("catalog:product:margherita", `{"id":"margherita","name":"","base_price":"850","is_available":true}`, time.Minute).SetVal("OK")

	static := NewStaticRepository(Product{ID: "margherita", BasePrice: decimal.NewFromInt(850), Available: true})
	repo := NewCachedRepository(static, cache.NewManager(redisclient.Wrap(db)), time.Minute)

	p, err := repo.GetProduct(context.Background(), "margherita")
	require.NoError(t, err)
	assert.True(t, p.BasePrice.Equal(decimal.NewFromInt(850)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedRepositoryHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet("catalog:product:margherita").SetVal(`{"id":"margherita","base_price":"900","is_available":true}`)

	repo := NewCachedRepository(NewStaticRepository(), cache.NewManager(redisclient.Wrap(db)), time.Minute)

	p, err := repo.GetProduct(context.Background(), "margherita")
	require.NoError(t, err)
	assert.True(t, p.BasePrice.Equal(decimal.NewFromInt(900)))
}

func TestCachedRepositoryPropagatesNotFound(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet("catalog:product:x").RedisNil()

	repo := NewCachedRepository(NewStaticRepository(), cache.NewManager(redisclient.Wrap(db)), time.Minute)

	_, err := repo.GetProduct(context.Background(), "x")
	assert.ErrorIs(t, err, ErrProductNotFound)
}
