package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	insighthttp "github.com/polyrabbit/token-insight/http"
)

const coinList = `[
	{"id": "bitcoin", "symbol": "btc", "name": "Bitcoin"},
	{"id": "bitcoin-copycat", "symbol": "BTC", "name": "Copycat"},
	{"id": "ethereum", "symbol": "eth", "name": "Ethereum"}
]`

type fakeAPI struct {
	mu      sync.Mutex
	hits    map[string]int
	queries map[string]string
	markets string
	chart   string
	status  int
}

func (api *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.mu.Lock()
	api.hits[r.URL.Path]++
	api.queries[r.URL.Path] = r.URL.RawQuery
	api.mu.Unlock()

	if api.status != 0 {
		w.WriteHeader(api.status)
		w.Write([]byte(`{"status":{"error_code":429,"error_message":"You've exceeded the Rate Limit"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/v3/coins/list":
		w.Write([]byte(coinList))
	case "/api/v3/coins/markets":
		w.Write([]byte(api.markets))
	case "/api/v3/coins/bitcoin/market_chart":
		w.Write([]byte(api.chart))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeAPI) {
	api := &fakeAPI{hits: make(map[string]int), queries: make(map[string]string)}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL+"/api/v3", &insighthttp.Client{StdClient: server.Client()})
	require.NoError(t, err)
	return client, api
}

func TestCoinGeckoClient_LookupToken(t *testing.T) {
	ctx := context.Background()

	t.Run("case-insensitive match", func(t *testing.T) {
		client, api := newTestClient(t)
		for _, symbol := range []string{"btc", "BTC", "Btc", " bTc "} {
			coin, found, err := client.LookupToken(ctx, symbol)
			require.NoError(t, err)
			require.True(t, found, "symbol %q should be found", symbol)
			assert.Equal(t, "bitcoin", coin.ID, "first catalog entry wins")
			assert.Equal(t, "Bitcoin", coin.Name)
		}
		assert.Equal(t, 4, api.hits["/api/v3/coins/list"], "catalog is fetched on every lookup")
	})

	t.Run("not found is not an error", func(t *testing.T) {
		client, api := newTestClient(t)
		coin, found, err := client.LookupToken(ctx, "doge")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, coin.ID)
		assert.Equal(t, 1, api.hits["/api/v3/coins/list"])
		assert.Len(t, api.hits, 1, "only the catalog should be requested")
	})

	t.Run("empty symbol skips the network", func(t *testing.T) {
		client, api := newTestClient(t)
		_, found, err := client.LookupToken(ctx, "  ")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, api.hits)
	})

	t.Run("upstream error", func(t *testing.T) {
		client, api := newTestClient(t)
		api.status = http.StatusTooManyRequests
		_, _, err := client.LookupToken(ctx, "btc")
		require.Error(t, err)
		var respErr *insighthttp.ResponseError
		require.True(t, errors.As(err, &respErr))
		assert.Equal(t, http.StatusTooManyRequests, respErr.StatusCode)
	})
}

func TestCoinGeckoClient_MarketSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("first result", func(t *testing.T) {
		client, api := newTestClient(t)
		api.markets = `[{"id":"bitcoin","current_price":50000.5,"total_volume":15000000000,"total_supply":21000000},
			{"id":"other","current_price":1}]`
		snapshot, err := client.MarketSnapshot(ctx, "bitcoin")
		require.NoError(t, err)
		assert.Equal(t, 50000.5, snapshot.Price)
		assert.Equal(t, 15000000000.0, snapshot.TotalVolume)
		assert.Equal(t, 21000000.0, snapshot.TotalSupply)
		assert.Contains(t, api.queries["/api/v3/coins/markets"], "ids=bitcoin")
		assert.Contains(t, api.queries["/api/v3/coins/markets"], "vs_currency=usd")
	})

	t.Run("null supply reads as zero", func(t *testing.T) {
		client, api := newTestClient(t)
		api.markets = `[{"id":"bitcoin","current_price":2,"total_volume":null,"total_supply":null}]`
		snapshot, err := client.MarketSnapshot(ctx, "bitcoin")
		require.NoError(t, err)
		assert.Equal(t, 2.0, snapshot.Price)
		assert.Zero(t, snapshot.TotalSupply)
	})

	t.Run("empty response", func(t *testing.T) {
		client, api := newTestClient(t)
		api.markets = `[]`
		_, err := client.MarketSnapshot(ctx, "bitcoin")
		assert.True(t, errors.Is(err, ErrNoMarketData), "got %v", err)
	})

	t.Run("missing price", func(t *testing.T) {
		client, api := newTestClient(t)
		api.markets = `[{"id":"bitcoin","current_price":null}]`
		_, err := client.MarketSnapshot(ctx, "bitcoin")
		assert.True(t, errors.Is(err, ErrNoMarketData), "got %v", err)
	})

	t.Run("malformed response", func(t *testing.T) {
		client, api := newTestClient(t)
		api.markets = `{"error": "oops"}`
		_, err := client.MarketSnapshot(ctx, "bitcoin")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrNoMarketData))
	})
}

func TestCoinGeckoClient_History(t *testing.T) {
	ctx := context.Background()

	t.Run("converts and sorts samples", func(t *testing.T) {
		client, api := newTestClient(t)
		api.chart = `{"prices": [[1700000003500, 3.5], [1700000000999, 1], [1700000002000, 2.25]],
			"market_caps": [], "total_volumes": []}`
		points, err := client.History(ctx, "bitcoin", 14)
		require.NoError(t, err)
		require.Len(t, points, 3, "sample count is preserved")

		assert.True(t, points[0].Time.Equal(time.Unix(1700000000, 0)), "millisecond epoch floors to the second")
		assert.True(t, points[1].Time.Equal(time.Unix(1700000002, 0)))
		assert.True(t, points[2].Time.Equal(time.Unix(1700000003, 0)))
		assert.Equal(t, []float64{1, 2.25, 3.5}, []float64{points[0].Price, points[1].Price, points[2].Price})
		assert.Equal(t, time.Unix(1700000000, 0).Local().Format("2006-01-02 15:04:05"), points[0].Stamp())
		assert.Contains(t, api.queries["/api/v3/coins/bitcoin/market_chart"], "days=14")
	})

	t.Run("empty prices", func(t *testing.T) {
		client, api := newTestClient(t)
		api.chart = `{"prices": []}`
		_, err := client.History(ctx, "bitcoin", 1)
		assert.True(t, errors.Is(err, ErrNoMarketData), "got %v", err)
	})

	t.Run("missing prices", func(t *testing.T) {
		client, api := newTestClient(t)
		api.chart = `{"error": "coin not found"}`
		_, err := client.History(ctx, "bitcoin", 1)
		assert.True(t, errors.Is(err, ErrNoMarketData), "got %v", err)
	})

	t.Run("malformed pair", func(t *testing.T) {
		client, api := newTestClient(t)
		api.chart = `{"prices": [[1700000000000, 1], [1700000001000]]}`
		_, err := client.History(ctx, "bitcoin", 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sample #2")
	})

	t.Run("invalid days", func(t *testing.T) {
		client, api := newTestClient(t)
		_, err := client.History(ctx, "bitcoin", 0)
		require.Error(t, err)
		assert.Empty(t, api.hits)
	})
}

func TestNewClient(t *testing.T) {
	_, err := NewClient("not a url", nil)
	assert.Error(t, err)

	client, err := NewClient("https://api.coingecko.com/api/v3/", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://api.coingecko.com/api/v3/coins/list", client.buildURL("coins", "list"))
}
