// backend/internal/collection/sheets.go
package collection

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"quizzems/internal/models"
)

// DefaultSheetRange holds questions in column B and answers in column C.
const DefaultSheetRange = "Sheet1!B:C"

// ValuesSource reads a cell range from a spreadsheet.
type ValuesSource interface {
	Values(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error)
}

type sheetsSource struct {
	svc *sheets.Service
}

func (s sheetsSource) Values(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// SheetsProvider treats a spreadsheet id as a collection id. Every row of the
// range becomes one text item.
type SheetsProvider struct {
	source    ValuesSource
	readRange string
}

// NewSheetsProvider authenticates with a service account credentials file.
func NewSheetsProvider(ctx context.Context, credentialsFile, readRange string) (*SheetsProvider, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return NewSheetsProviderFromSource(sheetsSource{svc: svc}, readRange), nil
}

func NewSheetsProviderFromSource(source ValuesSource, readRange string) *SheetsProvider {
	if readRange == "" {
		readRange = DefaultSheetRange
	}
	return &SheetsProvider{source: source, readRange: readRange}
}

func (p *SheetsProvider) FetchByID(ctx context.Context, id string) (*models.RawCollection, error) {
	rows, err := p.source.Values(ctx, id, p.readRange)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", id, err)
	}
	if len(rows) == 0 {
		log.Printf("No data returned from sheet %s", id)
		return nil, nil
	}

	coll := &models.RawCollection{
		ID:       id,
		Category: "Google Sheet",
		Author:   "Unknown",
	}
	for i, row := range rows {
		question := cell(row, 0)
		answer := cell(row, 1)
		if question == "" && answer == "" {
			continue
		}
		coll.Items = append(coll.Items, &models.RawItem{
			ID:       strconv.Itoa(i + 1),
			Question: question,
			Answer:   answer,
		})
	}
	log.Printf("Read %d items from sheet %s", len(coll.Items), id)
	return coll, nil
}

func cell(row []interface{}, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}
