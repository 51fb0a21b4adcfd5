// Package feed turns the published spreadsheet export into catalog records.
package feed

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	separator  = ','
	quote      = '"'
	minColumns = 6
)

// Header keys, as they appear in the spreadsheet after normalisation.
const (
	colID          = "id"
	colName        = "nombre"
	colDescription = "descripcion"
	colPrice       = "precio"
	colStock       = "stock"
	colImageURL    = "imagenurl"
	colFeatured    = "esdestacado"
	colCategory    = "categoria"
)

var recognized = map[string]struct{}{
	colID: {}, colName: {}, colDescription: {}, colPrice: {},
	colStock: {}, colImageURL: {}, colFeatured: {}, colCategory: {},
}

var (
	floatPrefix = regexp.MustCompile(`^[+-]?(\d+(\.\d+)?|\.\d+)([eE][+-]?\d+)?`)
	intPrefix   = regexp.MustCompile(`^[+-]?\d+`)
)

// Stats describes what happened to the data rows of one feed.
type Stats struct {
	Rows           int
	Accepted       int
	SkippedShort   int
	SkippedInvalid int
}

// Skipped returns the number of data rows that did not become records.
func (s Stats) Skipped() int {
	return s.SkippedShort + s.SkippedInvalid
}

// Parse returns the records of text in row order. Malformed input yields an empty slice.
func Parse(text string) []models.Product {
	products, _ := ParseWithStats(text)
	return products
}

// ParseWithStats is Parse plus per-row accounting.
func ParseWithStats(text string) ([]models.Product, Stats) {
	logger := util.GetLogger()
	var stats Stats

	lines := splitRecords(strings.TrimPrefix(text, "\ufeff"))
	if len(lines) < 2 {
		logger.Warn("Feed has fewer than 2 non-empty lines (header + data)", zap.Int("lines", len(lines)))
		return []models.Product{}, stats
	}

	columns := headerIndex(splitFields(lines[0]))
	logger.Debug("Feed header parsed", zap.Any("columns", columns))

	products := make([]models.Product, 0, len(lines)-1)
	for i, line := range lines[1:] {
		stats.Rows++
		fields := splitFields(line)

		if len(fields) < minColumns {
			stats.SkippedShort++
			logger.Warn("Feed row has fewer columns than expected",
				zap.Int("line", i+2),
				zap.Int("columns", len(fields)),
				zap.Strings("values", fields))
			continue
		}

		product := buildProduct(columns, fields)
		if product.ID == "" || product.Name == "" {
			stats.SkippedInvalid++
			logger.Warn("Feed row skipped: missing id or name",
				zap.Int("line", i+2),
				zap.Strings("values", fields))
			continue
		}

		products = append(products, product)
	}

	stats.Accepted = len(products)
	logger.Debug("Feed parsed",
		zap.Int("accepted", stats.Accepted),
		zap.Int("skipped", stats.Skipped()))
	return products, stats
}

func buildProduct(columns map[string]int, fields []string) models.Product {
	value := func(key string) string {
		idx, ok := columns[key]
		if !ok || idx >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[idx])
	}

	return models.Product{
		ID:          value(colID),
		Name:        value(colName),
		Description: value(colDescription),
		Price:       parsePrice(value(colPrice)),
		Stock:       parseStock(value(colStock)),
		ImageURL:    value(colImageURL),
		Featured:    strings.EqualFold(value(colFeatured), "true"),
		Category:    value(colCategory),
	}
}

// headerIndex maps every recognised key to the position of its first occurrence.
func headerIndex(header []string) map[string]int {
	columns := make(map[string]int, len(recognized))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, ok := recognized[key]; !ok {
			continue
		}
		if _, seen := columns[key]; !seen {
			columns[key] = i
		}
	}
	return columns
}

// normalizeHeader lowercases, trims and strips diacritics so "Descripción" matches "descripcion".
func normalizeHeader(h string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, h)
	if err != nil {
		folded = h
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// splitRecords breaks text into lines, drops a trailing "\r" and skips blank lines.
// Quotes never span lines, so an unbalanced quote only affects its own row.
func splitRecords(text string) []string {
	var records []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) != "" {
			records = append(records, line)
		}
	}
	return records
}

// splitFields splits one record on separators outside quotes. A doubled quote inside
// a quoted span is a literal quote. Fields are trimmed after de-quoting.
func splitFields(line string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)

	chars := []rune(line)
	for i := 0; i < len(chars); i++ {
		c := chars[i]
		switch {
		case c == quote:
			if inQuotes && i+1 < len(chars) && chars[i+1] == quote {
				current.WriteRune(quote)
				i++
			} else {
				inQuotes = !inQuotes
			}
		case c == separator && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(c)
		}
	}
	fields = append(fields, strings.TrimSpace(current.String()))

	return fields
}

// parsePrice reads the leading number of s. Anything unparseable is zero, negatives clamp to zero.
func parsePrice(s string) decimal.Decimal {
	m := floatPrefix.FindString(s)
	if m == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(m)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// parseStock reads the leading integer of s, so "12.7" is 12 and "abc" is 0.
func parseStock(s string) int {
	m := intPrefix.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
