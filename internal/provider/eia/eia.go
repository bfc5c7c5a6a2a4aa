// Package eia implements a provider for EIA (U.S. Energy Information
// Administration) spot price history workbooks, e.g. Henry Hub daily natural
// gas. The payload is a spreadsheet whose "Data 1" sheet carries two header
// rows followed by date/price pairs.
package eia

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/xuri/excelize/v2"

	"github.com/datasetkit/commodity-data/internal/provider"
)

const (
	defaultEndpoint = "https://www.eia.gov/dnav/ng/hist_xls/RNGWHHDd.xlsx"
	defaultSheet    = "Data 1"
	// Rows before the first observation: series title and column captions.
	headerRows = 2
)

// dateLayouts covers the renderings EIA has used for the date column across
// workbook revisions.
var dateLayouts = []string{
	"1/2/2006",
	"01-02-06",
	"2006-01-02",
	"Jan 2, 2006",
}

type Provider struct {
	source   string
	client   *resty.Client
	endpoint string
	sheet    string
}

func New(opts ...Option) *Provider {
	client := resty.New()
	client.SetTimeout(60 * time.Second)

	p := &Provider{
		source:   "eia",
		client:   client,
		endpoint: defaultEndpoint,
		sheet:    defaultSheet,
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

func WithSheet(name string) Option {
	return func(p *Provider) { p.sheet = name }
}

func (p *Provider) Source() string { return p.source }

// Fetch downloads the workbook and extracts date/price pairs from the data
// sheet. Blank and non-numeric rows (section captions, trailing notes) are
// skipped; a sheet with no usable rows is an error.
func (p *Provider) Fetch(ctx context.Context) ([]provider.Observation, error) {
	res, err := p.client.R().
		SetContext(ctx).
		Get(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch eia workbook: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("eia returned HTTP %d", res.StatusCode())
	}

	observations, err := p.parseWorkbook(res.Body())
	if err != nil {
		return nil, fmt.Errorf("parse eia workbook: %w", err)
	}

	slog.Info("retrieved eia data", "sheet", p.sheet, "count", len(observations))
	return observations, nil
}

func (p *Provider) parseWorkbook(payload []byte) ([]provider.Observation, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(p.sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", p.sheet, err)
	}
	if len(rows) <= headerRows {
		return nil, fmt.Errorf("sheet %q has no data rows", p.sheet)
	}

	observations := make([]provider.Observation, 0, len(rows)-headerRows)
	for _, row := range rows[headerRows:] {
		if len(row) < 2 {
			continue
		}
		dateCell := strings.TrimSpace(row[0])
		priceCell := strings.TrimSpace(row[1])
		if dateCell == "" || priceCell == "" {
			continue
		}
		date, ok := parseDate(dateCell)
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(priceCell, 64)
		if err != nil {
			continue
		}
		observations = append(observations, provider.Observation{Date: date, Price: price})
	}
	if len(observations) == 0 {
		return nil, fmt.Errorf("sheet %q yielded no observations", p.sheet)
	}
	return observations, nil
}

func parseDate(cell string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, cell); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
