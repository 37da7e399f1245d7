// Package stocks fetches quotes and price history from the Yahoo Finance
// chart API. No API key is required; the endpoints are the same ones the
// finance site itself calls.
package stocks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Client calls the Yahoo Finance public endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Client with a sane request timeout.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultBaseURL,
	}
}

// NewClientWithBase creates a Client against an alternate base URL.
// Tests point this at a local server.
func NewClientWithBase(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

// Quote is a snapshot of one symbol.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name,omitempty"`
	Price         float64 `json:"price"`
	Currency      string  `json:"currency"`
	PreviousClose float64 `json:"previous_close"`
	Change        float64 `json:"change"`
	ChangePct     float64 `json:"change_pct"`
	Exchange      string  `json:"exchange,omitempty"`
}

// Candle is one bar of price history.
type Candle struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// CompanyInfo is the profile returned by the search endpoint.
type CompanyInfo struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Type     string `json:"type"`
	Sector   string `json:"sector,omitempty"`
	Industry string `json:"industry,omitempty"`
}

// chartResponse mirrors the subset of /v8/finance/chart we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				ExchangeName       string  `json:"exchangeName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"chartPreviousClose"`
				LongName           string  `json:"longName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Quote fetches the current price of a symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (Quote, error) {
	resp, err := c.chart(ctx, symbol, "1d", "1d")
	if err != nil {
		return Quote{}, err
	}
	meta := resp.Chart.Result[0].Meta

	q := Quote{
		Symbol:        meta.Symbol,
		Name:          meta.LongName,
		Price:         meta.RegularMarketPrice,
		Currency:      meta.Currency,
		PreviousClose: meta.PreviousClose,
		Exchange:      meta.ExchangeName,
	}
	if q.PreviousClose != 0 {
		q.Change = q.Price - q.PreviousClose
		q.ChangePct = q.Change / q.PreviousClose * 100
	}
	return q, nil
}

// History fetches price bars. rng is a Yahoo range like "1mo" or "3mo",
// interval like "1d" or "1wk".
func (c *Client) History(ctx context.Context, symbol, rng, interval string) ([]Candle, error) {
	if rng == "" {
		rng = "3mo"
	}
	if interval == "" {
		interval = "1d"
	}
	resp, err := c.chart(ctx, symbol, rng, interval)
	if err != nil {
		return nil, err
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	bars := result.Indicators.Quote[0]

	candles := make([]Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(bars.Close) || bars.Close[i] == 0 {
			continue
		}
		candle := Candle{
			Date:  time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Close: bars.Close[i],
		}
		if i < len(bars.Open) {
			candle.Open = bars.Open[i]
		}
		if i < len(bars.High) {
			candle.High = bars.High[i]
		}
		if i < len(bars.Low) {
			candle.Low = bars.Low[i]
		}
		if i < len(bars.Volume) {
			candle.Volume = bars.Volume[i]
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// Lookup resolves a symbol or company name to its best search match.
func (c *Client) Lookup(ctx context.Context, query string) (CompanyInfo, error) {
	u := fmt.Sprintf("%s/v1/finance/search?q=%s&quotesCount=1&newsCount=0", c.baseURL, url.QueryEscape(query))
	body, err := c.get(ctx, u)
	if err != nil {
		return CompanyInfo{}, err
	}

	var parsed struct {
		Quotes []struct {
			Symbol    string `json:"symbol"`
			ShortName string `json:"shortname"`
			LongName  string `json:"longname"`
			Exchange  string `json:"exchange"`
			QuoteType string `json:"quoteType"`
			Sector    string `json:"sector"`
			Industry  string `json:"industry"`
		} `json:"quotes"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return CompanyInfo{}, fmt.Errorf("parse search response: %w", err)
	}
	if len(parsed.Quotes) == 0 {
		return CompanyInfo{}, fmt.Errorf("no match for %q", query)
	}

	q := parsed.Quotes[0]
	name := q.LongName
	if name == "" {
		name = q.ShortName
	}
	return CompanyInfo{
		Symbol:   q.Symbol,
		Name:     name,
		Exchange: q.Exchange,
		Type:     q.QuoteType,
		Sector:   q.Sector,
		Industry: q.Industry,
	}, nil
}

func (c *Client) chart(ctx context.Context, symbol, rng, interval string) (*chartResponse, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(rng), url.QueryEscape(interval))
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse chart response: %w", err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("%s: %s", symbol, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, fmt.Errorf("no chart data for %s", symbol)
	}
	return &parsed, nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (lessonmate)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d", u, resp.StatusCode)
	}
	return body, nil
}
