// Package fred implements a provider for FRED (Federal Reserve Economic
// Data) observation series. It downloads the public fredgraph CSV export for
// a configured series ID, e.g. DCOILBRENTEU for Crude Oil Brent.
package fred

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/datasetkit/commodity-data/internal/provider"
)

const (
	defaultEndpoint = "https://fred.stlouisfed.org/graph/fredgraph.csv"
	dateFormat      = "2006-01-02"
	// FRED renders missing observations as a bare dot.
	missingValue = "."
)

type Provider struct {
	seriesID string
	client   *resty.Client
	endpoint string
}

// New creates a FRED provider for the given series ID.
func New(seriesID string, opts ...Option) *Provider {
	client := resty.New()
	client.SetTimeout(30 * time.Second)

	p := &Provider{
		seriesID: seriesID,
		client:   client,
		endpoint: defaultEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type Option func(*Provider)

func WithClient(c *resty.Client) Option {
	return func(p *Provider) { p.client = c }
}

func WithEndpoint(ep string) Option {
	return func(p *Provider) { p.endpoint = ep }
}

func (p *Provider) Source() string { return "fred" }

// Fetch downloads and parses the series. The payload is a two-column CSV:
// observation_date plus one column named after the series ID.
func (p *Provider) Fetch(ctx context.Context) ([]provider.Observation, error) {
	res, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("id", p.seriesID).
		Get(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch fred series %s: %w", p.seriesID, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("fred returned HTTP %d for %s", res.StatusCode(), p.seriesID)
	}

	observations, err := parseCSV(string(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse fred series %s: %w", p.seriesID, err)
	}

	slog.Info("retrieved fred data", "series", p.seriesID, "count", len(observations))
	return observations, nil
}

func parseCSV(payload string) ([]provider.Observation, error) {
	r := csv.NewReader(strings.NewReader(payload))
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("empty payload")
	}
	if len(rows[0]) < 2 || rows[0][0] != "observation_date" {
		return nil, fmt.Errorf("unexpected header: %v", rows[0])
	}

	observations := make([]provider.Observation, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < 2 {
			return nil, fmt.Errorf("row %d: expected 2 fields, got %d", i+2, len(row))
		}
		value := strings.TrimSpace(row[1])
		if value == "" || value == missingValue {
			// Markets closed or value not yet published; skip the row.
			continue
		}
		date, err := time.Parse(dateFormat, strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("row %d: parse date %q: %w", i+2, row[0], err)
		}
		price, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: parse price %q: %w", i+2, value, err)
		}
		observations = append(observations, provider.Observation{Date: date, Price: price})
	}
	return observations, nil
}
