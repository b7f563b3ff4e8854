package sheets

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/noah-isme/referral-bot/pkg/config"
)

const valueInputRaw = "RAW"

// GoogleGrid talks to one spreadsheet through the Sheets v4 values API.
// Nothing is cached between calls.
type GoogleGrid struct {
	service       *gsheets.Service
	spreadsheetID string
	timeout       time.Duration
}

// NewGoogleGrid authenticates with a service-account file and returns a grid
// bound to the configured spreadsheet.
func NewGoogleGrid(ctx context.Context, cfg config.SheetsConfig) (*GoogleGrid, error) {
	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &GoogleGrid{service: svc, spreadsheetID: cfg.SpreadsheetID, timeout: cfg.Timeout}, nil
}

// bounded caps one round trip at the configured timeout.
func (g *GoogleGrid) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *GoogleGrid) Read(ctx context.Context, rng string) ([][]string, error) {
	ctx, cancel := g.bounded(ctx)
	defer cancel()
	resp, err := g.service.Spreadsheets.Values.Get(g.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets get %s: %w", rng, err)
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		out[i] = make([]string, len(row))
		for j, cell := range row {
			out[i][j] = fmt.Sprint(cell)
		}
	}
	return out, nil
}

func (g *GoogleGrid) Write(ctx context.Context, rng string, rows [][]string) error {
	ctx, cancel := g.bounded(ctx)
	defer cancel()
	_, err := g.service.Spreadsheets.Values.Update(g.spreadsheetID, rng, valueRange(rng, rows)).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets update %s: %w", rng, err)
	}
	return nil
}

func (g *GoogleGrid) BatchWrite(ctx context.Context, updates []Update) error {
	ctx, cancel := g.bounded(ctx)
	defer cancel()
	req := &gsheets.BatchUpdateValuesRequest{ValueInputOption: valueInputRaw}
	for _, u := range updates {
		req.Data = append(req.Data, valueRange(u.Range, u.Rows))
	}
	if _, err := g.service.Spreadsheets.Values.BatchUpdate(g.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("sheets batch update: %w", err)
	}
	return nil
}

func (g *GoogleGrid) Append(ctx context.Context, rng string, row []string) error {
	ctx, cancel := g.bounded(ctx)
	defer cancel()
	_, err := g.service.Spreadsheets.Values.Append(g.spreadsheetID, rng, valueRange(rng, [][]string{row})).
		ValueInputOption(valueInputRaw).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets append %s: %w", rng, err)
	}
	return nil
}

func valueRange(rng string, rows [][]string) *gsheets.ValueRange {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = make([]interface{}, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}
	return &gsheets.ValueRange{Range: rng, MajorDimension: "ROWS", Values: values}
}
