package coingecko

import (
	"context"
	"math"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/polyrabbit/token-insight/http"
	"github.com/polyrabbit/token-insight/model"
)

// https://docs.coingecko.com/reference/introduction
const vsCurrency = "usd"

// ErrNoMarketData means upstream answered but had nothing usable for the coin.
var ErrNoMarketData = errors.New("no market data")

type Client struct {
	BaseURL    *url.URL
	HTTPClient *http.Client
}

func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	baseURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid base url %q", rawURL)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, errors.Errorf("invalid base url %q, expecting scheme and host", rawURL)
	}
	return &Client{BaseURL: baseURL, HTTPClient: httpClient}, nil
}

func (client *Client) GetName() string {
	return "CoinGecko"
}

func (client *Client) buildURL(endpoint ...string) string {
	baseURL := *client.BaseURL
	baseURL.Path = path.Join(append([]string{baseURL.Path}, endpoint...)...)
	return baseURL.String()
}

// LookupToken finds the first catalog entry whose symbol equals symbol,
// ignoring case. The full catalog is downloaded on every call. A symbol
// that matches nothing is reported with found == false and a nil error.
func (client *Client) LookupToken(ctx context.Context, symbol string) (coin model.Coin, found bool, err error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return model.Coin{}, false, nil
	}
	respBytes, err := client.HTTPClient.Get(ctx, client.buildURL("coins", "list"), nil)
	if err != nil {
		return model.Coin{}, false, errors.Wrapf(err, "%s - fetch coin list", client.GetName())
	}

	scanned := 0
	_, err = jsonparser.ArrayEach(respBytes, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if found || dataType != jsonparser.Object {
			return
		}
		scanned++
		candidate, err := jsonparser.GetString(value, "symbol")
		if err != nil || !strings.EqualFold(candidate, symbol) {
			return
		}
		id, _ := jsonparser.GetString(value, "id")
		name, _ := jsonparser.GetString(value, "name")
		coin = model.Coin{ID: id, Symbol: candidate, Name: name}
		found = true
	})
	if err != nil {
		return model.Coin{}, false, errors.Wrapf(err, "%s - malformed coin list", client.GetName())
	}
	logrus.WithField("scanned", scanned).Debugf("%s - lookup %q, found %v", client.GetName(), symbol, found)
	return coin, found, nil
}

// MarketSnapshot returns the current USD price, volume and total supply
// of the coin.
func (client *Client) MarketSnapshot(ctx context.Context, coinID string) (model.MarketSnapshot, error) {
	respBytes, err := client.HTTPClient.Get(ctx, client.buildURL("coins", "markets"), map[string]string{
		"vs_currency": vsCurrency,
		"ids":         coinID,
	})
	if err != nil {
		return model.MarketSnapshot{}, errors.Wrapf(err, "%s - fetch market data of %s", client.GetName(), coinID)
	}
	if !gjson.ValidBytes(respBytes) {
		return model.MarketSnapshot{}, errors.Errorf("%s - malformed market data of %s", client.GetName(), coinID)
	}
	result := gjson.ParseBytes(respBytes)
	if !result.IsArray() {
		return model.MarketSnapshot{}, errors.Errorf("%s - market data of %s is not an array", client.GetName(), coinID)
	}
	first := result.Get("0")
	if !first.Exists() {
		return model.MarketSnapshot{}, errors.Wrapf(ErrNoMarketData, "cannot find %s, got zero-sized array response", coinID)
	}
	price := first.Get("current_price")
	if price.Type != gjson.Number {
		return model.MarketSnapshot{}, errors.Wrapf(ErrNoMarketData, "%s has no current price", coinID)
	}
	// total_volume and total_supply are null for some coins, they read as 0
	return model.MarketSnapshot{
		Price:       price.Float(),
		TotalVolume: first.Get("total_volume").Float(),
		TotalSupply: first.Get("total_supply").Float(),
		FetchedAt:   time.Now(),
	}, nil
}

// History returns the USD price samples of the last days, ascending in
// time. Sample density is whatever upstream returns for the window.
func (client *Client) History(ctx context.Context, coinID string, days int) ([]model.PricePoint, error) {
	if days <= 0 {
		return nil, errors.Errorf("days must be positive, got %d", days)
	}
	respBytes, err := client.HTTPClient.Get(ctx, client.buildURL("coins", coinID, "market_chart"), map[string]string{
		"vs_currency": vsCurrency,
		"days":        strconv.Itoa(days),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s - fetch price history of %s", client.GetName(), coinID)
	}
	points, err := parsePrices(respBytes)
	if err != nil {
		return nil, errors.Wrapf(err, "%s - price history of %s", client.GetName(), coinID)
	}
	logrus.Debugf("%s - got %d price samples of %s over %d days", client.GetName(), len(points), coinID, days)
	return points, nil
}

// parsePrices decodes the "prices" array of [epoch_ms, price] pairs.
func parsePrices(data []byte) ([]model.PricePoint, error) {
	var (
		points   []model.PricePoint
		parseErr error
	)
	_, err := jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if parseErr != nil {
			return
		}
		if dataType != jsonparser.Array {
			parseErr = errors.Errorf("sample #%d is not a pair", len(points)+1)
			return
		}
		var pair []float64
		_, err := jsonparser.ArrayEach(value, func(v []byte, dt jsonparser.ValueType, _ int, _ error) {
			if dt != jsonparser.Number {
				return
			}
			if f, err := jsonparser.ParseFloat(v); err == nil {
				pair = append(pair, f)
			}
		})
		if err != nil || len(pair) != 2 {
			parseErr = errors.Errorf("sample #%d is malformed: %s", len(points)+1, value)
			return
		}
		points = append(points, model.PricePoint{
			Time:  time.Unix(int64(math.Floor(pair[0]/1000)), 0),
			Price: pair[1],
		})
	}, "prices")
	if err == jsonparser.KeyPathNotFoundError {
		return nil, errors.Wrap(ErrNoMarketData, "no prices in response")
	}
	if err != nil {
		return nil, errors.Wrap(err, "malformed prices")
	}
	if parseErr != nil {
		return nil, parseErr
	}
	if len(points) == 0 {
		return nil, errors.Wrap(ErrNoMarketData, "got zero-sized prices")
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points, nil
}
