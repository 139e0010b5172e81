package pipeline

import (
	"fmt"
	"strings"

	"github.com/shpitdev/company-enricher/internal/enrich"
	"github.com/shpitdev/company-enricher/pkg/pipeline/schema"
)

// BuildRows renders one export row per company in contract column order.
// Missing values use the contract placeholders instead of blanks.
func BuildRows(items []enrich.Company, c schema.Contract) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		row := make([]string, len(c.Columns))
		for i, col := range c.Columns {
			row[i] = cellValue(item, col, c)
		}
		rows = append(rows, row)
	}
	return rows
}

func cellValue(item enrich.Company, col schema.Column, c schema.Contract) string {
	var rec enrich.Record
	if item.Data != nil {
		rec = *item.Data
	}

	switch col {
	case schema.ColumnName:
		return item.Name
	case schema.ColumnWebsite:
		return orDefault(rec.Website, c.NoData)
	case schema.ColumnDescription:
		return orDefault(rec.Description, c.NoData)
	case schema.ColumnRevenue:
		return orDefault(rec.Revenue, c.NoData)
	case schema.ColumnLabsConfirm:
		return orDefault(strings.Join(rec.Laboratories.Confirmed, ", "), c.NoList)
	case schema.ColumnLabsPresume:
		return orDefault(strings.Join(rec.Laboratories.Presumed, ", "), c.NoList)
	case schema.ColumnContacts:
		return orDefault(formatContacts(rec.Contacts, c), c.NoList)
	case schema.ColumnStatus:
		return string(item.Status)
	case schema.ColumnError:
		return item.Error
	case schema.ColumnSources:
		return orDefault(formatSources(item.Sources), c.NoList)
	default:
		return ""
	}
}

func formatContacts(contacts []enrich.Contact, c schema.Contract) string {
	lines := make([]string, 0, len(contacts))
	for _, ct := range contacts {
		lines = append(lines, fmt.Sprintf(c.ContactFormat,
			ct.Name,
			ct.Title,
			orDefault(ct.Email, c.Unspecified),
			orDefault(ct.Phone, c.Unspecified),
		))
	}
	return strings.Join(lines, "\n")
}

func formatSources(sources []enrich.Citation) string {
	lines := make([]string, 0, len(sources))
	for _, s := range sources {
		lines = append(lines, s.Title+" <"+s.URI+">")
	}
	return strings.Join(lines, "\n")
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
