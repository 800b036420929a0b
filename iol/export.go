package iol

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/etnz/brokerfolio"
	"github.com/etnz/brokerfolio/date"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/encoding/charmap"
)

// ErrUnsupportedFormat is returned for exports that are neither a delimited
// text file nor an HTML table.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Kind is the structure of an export file.
type Kind int

const (
	Unknown Kind = iota
	CSV
	HTML
	// XLS is the legacy binary spreadsheet format, it cannot be read.
	XLS
)

func (k Kind) String() string {
	switch k {
	case CSV:
		return "csv"
	case HTML:
		return "html"
	case XLS:
		return "xls"
	default:
		return "unknown"
	}
}

// Format is the detected format of an export.
type Format struct {
	Kind      Kind
	Delimiter rune // CSV only
}

var (
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0}
)

// DetectFormat sniffs the format of an export from its content.
func DetectFormat(content []byte) Format {
	if bytes.HasPrefix(content, ole2Magic) {
		return Format{Kind: XLS}
	}
	head := bytes.TrimLeft(bytes.TrimPrefix(content, utf8BOM), " \t\r\n")
	if len(head) == 0 {
		return Format{Kind: Unknown}
	}
	if head[0] == '<' {
		return Format{Kind: HTML}
	}
	return Format{Kind: CSV, Delimiter: sniffDelimiter(head)}
}

// sniffDelimiter returns the most frequent candidate delimiter of the first
// line, ',' when there is none.
func sniffDelimiter(content []byte) rune {
	line, _, _ := bytes.Cut(content, []byte("\n"))
	best, count := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > count {
			best, count = d, n
		}
	}
	return best
}

// ReadExport reads the transactions of an InvertirOnline export.
//
// The returned error is either fatal, and no transaction is returned, or the
// join of the *RowError of rows that could not be read, the other rows being
// returned.
func ReadExport(r io.Reader) ([]brokerfolio.RawTransaction, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("cannot read export: %w", err)
	}
	format := DetectFormat(content)
	if format.Kind == XLS || format.Kind == Unknown {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format.Kind)
	}

	content = bytes.TrimPrefix(content, utf8BOM)
	if !utf8.Valid(content) {
		if content, err = charmap.Windows1252.NewDecoder().Bytes(content); err != nil {
			return nil, fmt.Errorf("cannot decode export: %w", err)
		}
	}

	var rows [][]string
	switch format.Kind {
	case HTML:
		rows, err = htmlRows(content)
	case CSV:
		rows, err = csvRows(content, format.Delimiter)
	}
	if err != nil {
		return nil, err
	}
	return readRows(rows)
}

func csvRows(content []byte, delimiter rune) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV records: %w", err)
	}
	return rows, nil
}

// htmlRows returns the text of the cells of every table row of the document.
func htmlRows(content []byte) ([][]string, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML export: %w", err)
	}
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			var row []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
					row = append(row, text(c))
				}
			}
			rows = append(rows, row)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no table in HTML export", ErrUnsupportedFormat)
	}
	return rows, nil
}

func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// RowError is a row of the export that could not be read.
type RowError struct {
	Row int // 1-based, header included
	Err error
}

func (e *RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }
func (e *RowError) Unwrap() error { return e.Err }

// column is a column of the export, in the order of a headerless export.
type column int

const (
	colTransactionDate column = iota
	colSettlementDate
	colTicket
	colMarket
	colOperation
	colAccount
	colDescription
	colInstrument
	colSymbol
	colQuantity
	colCurrency
	colWeightedPrice
	colAmount
	colCommission
	colTax
	colTotal
	numColumns
)

// headers maps folded header labels to columns.
var headers = map[string]column{
	"fecha transaccion":    colTransactionDate,
	"fecha de transaccion": colTransactionDate,
	"fecha concertacion":   colTransactionDate,
	"transaction date":     colTransactionDate,
	"fecha liquidacion":    colSettlementDate,
	"fecha de liquidacion": colSettlementDate,
	"settlement date":      colSettlementDate,
	"boleto":               colTicket,
	"nro boleto":           colTicket,
	"ticket":               colTicket,
	"mercado":              colMarket,
	"market":               colMarket,
	"tipo transaccion":     colOperation,
	"tipo de transaccion":  colOperation,
	"transaction type":     colOperation,
	"numero de cuenta":     colAccount,
	"nro de cuenta":        colAccount,
	"cuenta":               colAccount,
	"account number":       colAccount,
	"descripcion":          colDescription,
	"description":          colDescription,
	"instrumento":          colInstrument,
	"instrument":           colInstrument,
	"simbolo":              colSymbol,
	"symbol":               colSymbol,
	"cantidad":             colQuantity,
	"quantity":             colQuantity,
	"moneda":               colCurrency,
	"currency":             colCurrency,
	"precio ponderado":     colWeightedPrice,
	"weighted price":       colWeightedPrice,
	"monto":                colAmount,
	"amount":               colAmount,
	"comision":             colCommission,
	"comisiones":           colCommission,
	"commission":           colCommission,
	"impuesto":             colTax,
	"impuestos":            colTax,
	"iva":                  colTax,
	"tax":                  colTax,
	"total":                colTotal,
}

// headerScan is the number of leading rows searched for a header.
const headerScan = 5

// layout maps columns to cell indexes, -1 for an absent column.
type layout [numColumns]int

// positional is the layout of a headerless export.
func positional() layout {
	var l layout
	for c := range l {
		l[c] = c
	}
	return l
}

// headerLayout returns the layout described by row when it is a header row:
// it must name the symbol column and at least two others.
func headerLayout(row []string) (layout, bool) {
	var l layout
	for c := range l {
		l[c] = -1
	}
	found := 0
	for i, cell := range row {
		c, ok := headers[brokerfolio.Fold(strings.ReplaceAll(cell, "_", " "))]
		if !ok || l[c] >= 0 {
			continue
		}
		l[c] = i
		found++
	}
	return l, l[colSymbol] >= 0 && found >= 3
}

// width is the number of cells a row needs.
func (l layout) width() int {
	w := 0
	for _, i := range l {
		w = max(w, i+1)
	}
	return w
}

func (l layout) cell(row []string, c column) string {
	if l[c] < 0 || l[c] >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[l[c]])
}

func readRows(rows [][]string) ([]brokerfolio.RawTransaction, error) {
	// the header may come after a title line
	l, start := positional(), 0
	for i := 0; i < len(rows) && i < headerScan; i++ {
		if hl, ok := headerLayout(rows[i]); ok {
			l, start = hl, i+1
			break
		}
	}

	var txs []brokerfolio.RawTransaction
	var errs []error
	width := l.width()
	comma := decimalComma(l, rows[start:])
	for i := start; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		if len(row) < width {
			errs = append(errs, &RowError{Row: i + 1, Err: fmt.Errorf("%d cells, want %d", len(row), width)})
			continue
		}
		if l.cell(row, colSymbol) == "" {
			continue
		}
		txs = append(txs, readRow(l, row, comma))
	}
	return txs, errors.Join(errs...)
}

// numeric are the columns holding numbers.
var numeric = []column{colQuantity, colWeightedPrice, colAmount, colCommission, colTax, colTotal}

// decimalComma reports whether the numbers of rows are written with a ","
// decimal separator, as in "1.500,00". A single cell is enough to tell.
func decimalComma(l layout, rows [][]string) bool {
	for _, row := range rows {
		for _, c := range numeric {
			if strings.Contains(l.cell(row, c), ",") {
				return true
			}
		}
	}
	return false
}

func readRow(l layout, row []string, comma bool) brokerfolio.RawTransaction {
	label := l.cell(row, colOperation)
	op, _ := brokerfolio.ParseOperation(label)
	quantity := parseNumber(l.cell(row, colQuantity), comma)
	quantity.Decimal = quantity.Decimal.Abs()
	return brokerfolio.RawTransaction{
		TransactionDate: parseDate(l.cell(row, colTransactionDate)),
		SettlementDate:  parseDate(l.cell(row, colSettlementDate)),
		Ticket:          l.cell(row, colTicket),
		Market:          l.cell(row, colMarket),
		Operation:       op,
		OperationLabel:  label,
		Account:         l.cell(row, colAccount),
		Description:     l.cell(row, colDescription),
		Instrument:      l.cell(row, colInstrument),
		Symbol:          l.cell(row, colSymbol),
		CurrencyLabel:   l.cell(row, colCurrency),
		Quantity:        quantity,
		WeightedPrice:   parseNumber(l.cell(row, colWeightedPrice), comma),
		Amount:          parseNumber(l.cell(row, colAmount), comma),
		Commission:      parseNumber(l.cell(row, colCommission), comma),
		Tax:             parseNumber(l.cell(row, colTax), comma),
		Total:           parseNumber(l.cell(row, colTotal), comma),
	}
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// parseDate returns the zero Date when s is not a date.
func parseDate(s string) date.Date {
	d, err := date.ParseLocal(s)
	if err != nil {
		return date.Date{}
	}
	return d
}

// thousands reports whether the only "." of s reads as a thousands separator
// in a file using "," decimals, as in "1.000". "0.125" is a decimal.
func thousands(s string) bool {
	whole, frac, ok := strings.Cut(s, ".")
	whole = strings.TrimPrefix(whole, "-")
	return ok && len(frac) == 3 && whole != "" && whole != "0"
}

// parseNumber reads "1.234,56" as well as "1234.56". With comma set, the file
// writes "," decimals and a lone "." followed by three digits is a thousands
// separator. Without it "150.125" is a decimal. Anything else is an invalid
// NullDecimal.
func parseNumber(s string, comma bool) decimal.NullDecimal {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			return r
		case r == ' ', r == '$', r == '\u00a0':
			return -1
		}
		return 'x'
	}, strings.TrimPrefix(strings.TrimSpace(s), "US"))

	switch {
	case strings.Contains(s, ","):
		// "." are thousands separators
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1, comma && thousands(s):
		s = strings.ReplaceAll(s, ".", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// ExportFile is a TransactionSource reading an export from disk.
type ExportFile struct {
	Path   string
	Logger *zap.Logger
}

// Transactions reads the file. Rows that cannot be read are logged and
// skipped.
func (f ExportFile) Transactions(ctx context.Context) ([]brokerfolio.RawTransaction, error) {
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	txs, err := ReadExport(file)
	if err != nil && txs == nil {
		return nil, fmt.Errorf("cannot read %s: %w", f.Path, err)
	}
	if err != nil {
		logger.Warn("skipped unreadable rows", zap.String("file", f.Path), zap.Error(err))
	}
	logger.Info("export read", zap.String("file", f.Path), zap.Int("transactions", len(txs)))
	return txs, nil
}
