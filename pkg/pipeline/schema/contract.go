package schema

import (
	"strings"
)

// Locale selects the header language and placeholder texts of the export sheet.
type Locale string

const (
	LocaleEnglish Locale = "en"
	LocaleRussian Locale = "ru"
)

// Column identifies one export column independent of its header text.
type Column string

const (
	ColumnName        Column = "name"
	ColumnWebsite     Column = "website"
	ColumnDescription Column = "description"
	ColumnRevenue     Column = "revenue"
	ColumnLabsConfirm Column = "labs_confirmed"
	ColumnLabsPresume Column = "labs_presumed"
	ColumnContacts    Column = "contacts"
	ColumnStatus      Column = "status"
	ColumnError       Column = "error"
	ColumnSources     Column = "sources"
)

// Contract is the stable export sheet layout for one locale.
type Contract struct {
	Locale  Locale
	Columns []Column
	Headers map[Column]string

	// NoData replaces a missing scalar value (website, description, revenue).
	NoData string
	// NoList replaces an empty list (laboratories, contacts).
	NoList string
	// Unspecified replaces a missing contact email or phone.
	Unspecified string

	// ContactFormat renders one contact: name, title, email, phone.
	ContactFormat string
}

// SheetName is the worksheet name used for exported workbooks.
const SheetName = "Enriched Company Data"

var baseColumns = []Column{
	ColumnName,
	ColumnWebsite,
	ColumnDescription,
	ColumnRevenue,
	ColumnLabsConfirm,
	ColumnLabsPresume,
	ColumnContacts,
	ColumnStatus,
	ColumnError,
}

var contracts = map[Locale]Contract{
	LocaleEnglish: {
		Locale: LocaleEnglish,
		Headers: map[Column]string{
			ColumnName:        "Company name",
			ColumnWebsite:     "Website",
			ColumnDescription: "Description",
			ColumnRevenue:     "Revenue",
			ColumnLabsConfirm: "Confirmed laboratories",
			ColumnLabsPresume: "Presumed laboratories",
			ColumnContacts:    "Contacts",
			ColumnStatus:      "Processing status",
			ColumnError:       "Error",
			ColumnSources:     "Sources",
		},
		NoData:        "no data",
		NoList:        "no data",
		Unspecified:   "not specified",
		ContactFormat: "Name: %s, Title: %s, Email: %s, Phone: %s",
	},
	LocaleRussian: {
		Locale: LocaleRussian,
		Headers: map[Column]string{
			ColumnName:        "Название компании",
			ColumnWebsite:     "Сайт",
			ColumnDescription: "Описание",
			ColumnRevenue:     "Оборот",
			ColumnLabsConfirm: "Подтвержденные лаборатории",
			ColumnLabsPresume: "Предполагаемые лаборатории",
			ColumnContacts:    "Контакты",
			ColumnStatus:      "Статус обработки",
			ColumnError:       "Ошибка",
			ColumnSources:     "Источники",
		},
		NoData:        "Нет данных",
		NoList:        "Нет",
		Unspecified:   "Не указан",
		ContactFormat: "Имя: %s, Должность: %s, Email: %s, Телефон: %s",
	},
}

// NormalizeLocale maps user input to a supported locale, defaulting to English.
func NormalizeLocale(raw string) Locale {
	s := strings.TrimSpace(strings.ToLower(raw))
	switch s {
	case "ru", "rus", "russian":
		return LocaleRussian
	default:
		return LocaleEnglish
	}
}

// ContractFor returns the export layout for locale. includeSources appends the
// sources column after the error column.
func ContractFor(locale Locale, includeSources bool) Contract {
	c, ok := contracts[locale]
	if !ok {
		c = contracts[LocaleEnglish]
	}
	cols := make([]Column, 0, len(baseColumns)+1)
	cols = append(cols, baseColumns...)
	if includeSources {
		cols = append(cols, ColumnSources)
	}
	c.Columns = cols
	return c
}

// Header returns the header row in column order.
func (c Contract) Header() []string {
	out := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		out[i] = c.Headers[col]
	}
	return out
}
