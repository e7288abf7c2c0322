// Package bybit adapts the Bybit v5 unified trading API to the broker
// boundary. PatternDayTrader and DaytradeCount are always zero here:
// the PDT rule is a US equities regulation and crypto venues do not
// report it.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/ducminhle1904/risk-funnel-bot/internal/broker"
	"github.com/ducminhle1904/risk-funnel-bot/pkg/types"
)

// Config holds the configuration for the Bybit adapter
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool   // Demo trading environment
	Category  string // product category, e.g. "linear"
}

// Adapter implements broker.Broker against Bybit v5.
type Adapter struct {
	httpClient *bybit_api.Client
	category   string
	retry      broker.RetryPolicy
}

// New creates a Bybit adapter
func New(config Config) *Adapter {
	var baseURL string
	if config.Demo {
		// Demo trading environment (paper trading)
		baseURL = "https://api-demo.bybit.com"
	} else if config.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	category := config.Category
	if category == "" {
		category = "linear"
	}

	return &Adapter{
		httpClient: httpClient,
		category:   category,
		retry:      broker.DefaultRetryPolicy(),
	}
}

// GetTicker implements broker.MarketData.
func (a *Adapter) GetTicker(ctx context.Context, symbol string) (types.Ticker, error) {
	price, err := a.latestPrice(ctx, symbol)
	if err != nil {
		return types.Ticker{}, err
	}

	return types.Ticker{
		Symbol:    symbol,
		Price:     price,
		Timestamp: time.Now(),
	}, nil
}

// GetAccountSnapshot implements broker.AccountProvider.
func (a *Adapter) GetAccountSnapshot(ctx context.Context) (types.AccountSnapshot, error) {
	var snapshot types.AccountSnapshot

	err := a.retry.Do(ctx, "bybit", "GetAccountSnapshot", func() error {
		params := map[string]interface{}{
			"accountType": "UNIFIED",
		}

		result, err := a.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
		if err != nil {
			return fmt.Errorf("failed to get account wallet: %w", err)
		}

		parsed, err := parseWalletResponse(result)
		if err != nil {
			return err
		}
		snapshot = parsed
		return nil
	})

	return snapshot, err
}

// GetPositions implements broker.AccountProvider.
func (a *Adapter) GetPositions(ctx context.Context) ([]types.Position, error) {
	var positions []types.Position

	err := a.retry.Do(ctx, "bybit", "GetPositions", func() error {
		params := map[string]interface{}{
			"category":   a.category,
			"settleCoin": "USDT",
		}

		result, err := a.httpClient.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
		if err != nil {
			return fmt.Errorf("failed to get positions: %w", err)
		}

		parsed, err := parsePositionsResponse(result)
		if err != nil {
			return err
		}
		positions = parsed
		return nil
	})

	return positions, err
}

// SubmitOrder implements broker.Executor. The notional is converted to
// a base-coin quantity at the latest ticker price.
func (a *Adapter) SubmitOrder(ctx context.Context, symbol string, side types.Side, notional float64) (types.Fill, error) {
	if notional <= 0 {
		return types.Fill{}, fmt.Errorf("invalid notional %.2f", notional)
	}

	price, err := a.latestPrice(ctx, symbol)
	if err != nil {
		return types.Fill{}, err
	}

	qty := notional / price

	return a.placeMarketOrder(ctx, symbol, side, qty, false)
}

// ClosePosition implements broker.Executor using a reduce-only market
// order for the full position size.
func (a *Adapter) ClosePosition(ctx context.Context, symbol string) (types.Fill, error) {
	positions, err := a.GetPositions(ctx)
	if err != nil {
		return types.Fill{}, err
	}

	var open *types.Position
	for i := range positions {
		if positions[i].Symbol == symbol && positions[i].Quantity != 0 {
			open = &positions[i]
			break
		}
	}
	if open == nil {
		return types.Fill{}, fmt.Errorf("no open position in %s", symbol)
	}

	side := types.SideSell
	qty := open.Quantity
	if qty < 0 {
		side = types.SideBuy
		qty = -qty
	}

	fill, err := a.placeMarketOrder(ctx, symbol, side, qty, true)
	if err != nil {
		return types.Fill{}, err
	}

	fill.RealizedPL = open.UnrealizedPL()
	return fill, nil
}

func (a *Adapter) placeMarketOrder(ctx context.Context, symbol string, side types.Side, qty float64, reduceOnly bool) (types.Fill, error) {
	apiSide := "Buy"
	if side == types.SideSell {
		apiSide = "Sell"
	}

	params := map[string]interface{}{
		"category":  a.category,
		"symbol":    symbol,
		"side":      apiSide,
		"orderType": "Market",
		"qty":       strconv.FormatFloat(qty, 'f', -1, 64),
	}
	if reduceOnly {
		params["reduceOnly"] = true
	}

	var fill types.Fill

	err := a.retry.Do(ctx, "bybit", "PlaceOrder", func() error {
		result, err := a.httpClient.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
		if err != nil {
			return fmt.Errorf("failed to place order: %w", err)
		}

		orderID, err := parseOrderResponse(result)
		if err != nil {
			return err
		}

		fill = types.Fill{
			OrderID:   orderID,
			Symbol:    symbol,
			Side:      side,
			FilledQty: qty,
			Timestamp: time.Now(),
		}
		return nil
	})
	if err != nil {
		return types.Fill{}, err
	}

	// Market orders fill immediately; price the fill at the latest tick.
	if price, perr := a.latestPrice(ctx, symbol); perr == nil {
		fill.FilledPrice = price
		fill.Notional = qty * price
	}

	return fill, nil
}

func (a *Adapter) latestPrice(ctx context.Context, symbol string) (float64, error) {
	var price float64

	err := a.retry.Do(ctx, "bybit", "GetMarketTickers", func() error {
		params := map[string]interface{}{
			"category": a.category,
			"symbol":   symbol,
		}

		result, err := a.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
		if err != nil {
			return fmt.Errorf("failed to get latest price: %w", err)
		}

		parsed, err := parseTickerResponse(result)
		if err != nil {
			return err
		}
		price = parsed
		return nil
	})
	if err != nil {
		return 0, err
	}
	if price <= 0 {
		return 0, fmt.Errorf("invalid last price for %s", symbol)
	}

	return price, nil
}

func parseWalletResponse(response interface{}) (types.AccountSnapshot, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return types.AccountSnapshot{}, fmt.Errorf("invalid response type")
	}

	if serverResp.RetCode != 0 {
		return types.AccountSnapshot{}, fmt.Errorf("API error: %s (code: %d)", serverResp.RetMsg, serverResp.RetCode)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return types.AccountSnapshot{}, fmt.Errorf("failed to marshal result: %w", err)
	}

	var walletResult struct {
		List []struct {
			TotalEquity           string `json:"totalEquity"`
			TotalAvailableBalance string `json:"totalAvailableBalance"`
			TotalWalletBalance    string `json:"totalWalletBalance"`
		} `json:"list"`
	}

	if err := json.Unmarshal(resultBytes, &walletResult); err != nil {
		return types.AccountSnapshot{}, fmt.Errorf("failed to unmarshal wallet result: %w", err)
	}

	if len(walletResult.List) == 0 {
		return types.AccountSnapshot{}, fmt.Errorf("no account data found")
	}

	account := walletResult.List[0]
	return types.AccountSnapshot{
		Equity:      parseFloat64(account.TotalEquity),
		Cash:        parseFloat64(account.TotalWalletBalance),
		BuyingPower: parseFloat64(account.TotalAvailableBalance),
		AsOf:        time.Now(),
	}, nil
}

func parsePositionsResponse(response interface{}) ([]types.Position, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type")
	}

	if serverResp.RetCode != 0 {
		return nil, fmt.Errorf("API error: %s (code: %d)", serverResp.RetMsg, serverResp.RetCode)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var positionResult struct {
		List []struct {
			Symbol     string `json:"symbol"`
			Side       string `json:"side"`
			Size       string `json:"size"`
			EntryPrice string `json:"entryPrice"`
			MarkPrice  string `json:"markPrice"`
		} `json:"list"`
	}

	if err := json.Unmarshal(resultBytes, &positionResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal position result: %w", err)
	}

	now := time.Now()
	var positions []types.Position
	for _, posData := range positionResult.List {
		qty := parseFloat64(posData.Size)
		if qty == 0 {
			continue
		}
		if posData.Side == "Sell" {
			qty = -qty
		}
		positions = append(positions, types.Position{
			Symbol:       posData.Symbol,
			Quantity:     qty,
			EntryPrice:   parseFloat64(posData.EntryPrice),
			CurrentPrice: parseFloat64(posData.MarkPrice),
			AsOf:         now,
		})
	}

	return positions, nil
}

func parseOrderResponse(response interface{}) (string, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return "", fmt.Errorf("invalid response type")
	}

	if serverResp.RetCode != 0 {
		return "", fmt.Errorf("API error: %s (code: %d)", serverResp.RetMsg, serverResp.RetCode)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	var orderResult struct {
		OrderID string `json:"orderId"`
	}

	if err := json.Unmarshal(resultBytes, &orderResult); err != nil {
		return "", fmt.Errorf("failed to unmarshal order result: %w", err)
	}

	if orderResult.OrderID == "" {
		return "", fmt.Errorf("order response missing orderId")
	}

	return orderResult.OrderID, nil
}

func parseTickerResponse(response interface{}) (float64, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return 0, fmt.Errorf("invalid response type")
	}

	if serverResp.RetCode != 0 {
		return 0, fmt.Errorf("API error: %s (code: %d)", serverResp.RetMsg, serverResp.RetCode)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal result: %w", err)
	}

	var tickerResult struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}

	if err := json.Unmarshal(resultBytes, &tickerResult); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ticker result: %w", err)
	}

	if len(tickerResult.List) == 0 {
		return 0, fmt.Errorf("no ticker data found")
	}

	return parseFloat64(tickerResult.List[0].LastPrice), nil
}

func parseFloat64(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
