// Command stocktools is the stdio tool provider for the stock agent. It
// exposes Yahoo Finance quotes over the newline-framed JSON-RPC tool
// protocol.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lessonmate/lessonmate/internal/mcpserver"
	"github.com/lessonmate/lessonmate/internal/stocks"
)

func main() {
	client := stocks.NewClient()

	srv := mcpserver.New("stocktools", "0.1.0")
	registerStockTools(srv, client)

	if err := srv.ServeStdio(context.Background()); err != nil && err != context.Canceled {
		slog.Error("serve", "err", err)
		os.Exit(1)
	}
}

func registerStockTools(srv *mcpserver.Server, client *stocks.Client) {
	symbolSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"symbol": map[string]any{"type": "string", "description": "Ticker symbol, e.g. AAPL"},
		},
		"required": []any{"symbol"},
	}

	srv.Register("get_stock_price",
		"Get the current price and day change for a ticker symbol.",
		symbolSchema,
		func(ctx context.Context, args map[string]any) (string, error) {
			q, err := client.Quote(ctx, stringArg(args, "symbol"))
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s (%s): %.2f %s, change %+.2f (%+.2f%%), previous close %.2f, exchange %s",
				q.Symbol, q.Name, q.Price, q.Currency, q.Change, q.ChangePct, q.PreviousClose, q.Exchange), nil
		})

	srv.Register("get_stock_history",
		"Get historical candles for a ticker symbol.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"symbol":   map[string]any{"type": "string"},
				"range":    map[string]any{"type": "string", "description": "e.g. 1mo, 3mo, 1y (default 3mo)"},
				"interval": map[string]any{"type": "string", "description": "e.g. 1d, 1wk (default 1d)"},
			},
			"required": []any{"symbol"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			candles, err := client.History(ctx, stringArg(args, "symbol"), stringArg(args, "range"), stringArg(args, "interval"))
			if err != nil {
				return "", err
			}
			if len(candles) == 0 {
				return "No history available.", nil
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%d candles:\n", len(candles))
			for _, c := range candles {
				fmt.Fprintf(&b, "- %s open %.2f high %.2f low %.2f close %.2f volume %d\n",
					c.Date, c.Open, c.High, c.Low, c.Close, c.Volume)
			}
			return strings.TrimRight(b.String(), "\n"), nil
		})

	srv.Register("get_company_info",
		"Look up a company by name or ticker and return its symbol, exchange, and sector.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "Company name or ticker"},
			},
			"required": []any{"query"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			info, err := client.Lookup(ctx, stringArg(args, "query"))
			if err != nil {
				return "", err
			}
			parts := []string{fmt.Sprintf("%s: %s (%s, %s)", info.Symbol, info.Name, info.Exchange, info.Type)}
			if info.Sector != "" {
				parts = append(parts, "sector "+info.Sector)
			}
			if info.Industry != "" {
				parts = append(parts, "industry "+info.Industry)
			}
			return strings.Join(parts, ", "), nil
		})
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
