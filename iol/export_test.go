package iol

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/etnz/brokerfolio"
	"github.com/etnz/brokerfolio/date"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const header = "Fecha Transacción;Fecha Liquidación;Boleto;Mercado;Tipo Transacción;Numero de Cuenta;Descripción;Instrumento;Simbolo;Cantidad;Moneda;Precio Ponderado;Monto;Comisión;Impuesto;Total"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		content string
		want    Format
	}{
		{"a,b,c\n1,2,3", Format{Kind: CSV, Delimiter: ','}},
		{"a;b;c\n1,5;2;3", Format{Kind: CSV, Delimiter: ';'}},
		{"a\tb\tc\n", Format{Kind: CSV, Delimiter: '\t'}},
		{"single", Format{Kind: CSV, Delimiter: ','}},
		{"\xEF\xBB\xBF  <table></table>", Format{Kind: HTML}},
		{"\n<html><body><table>", Format{Kind: HTML}},
		{"\xD0\xCF\x11\xE0\xA1\xB1\x1A\xE1", Format{Kind: XLS}},
		{"  \n", Format{Kind: Unknown}},
	}
	for _, tt := range tests {
		if got := DetectFormat([]byte(tt.content)); got != tt.want {
			t.Errorf("DetectFormat(%q) = %+v, want %+v", tt.content, got, tt.want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in    string
		comma bool
		want  string
		valid bool
	}{
		{"1.234,56", true, "1234.56", true},
		{"1.234.567", true, "1234567", true},
		{"1.234.567", false, "1234567", true},
		{"1.000", true, "1000", true},
		{"1.000", false, "1", true},
		{"150.125", true, "150125", true},
		{"150.125", false, "150.125", true},
		{"0.125", true, "0.125", true},
		{"1234.5", false, "1234.5", true},
		{"1.5", true, "1.5", true},
		{"-10,5", true, "-10.5", true},
		{"US$ 150,00", true, "150", true},
		{"$ 1.500", true, "1500", true},
		{"", false, "0", false},
		{"-", false, "0", false},
		{"N/A", true, "0", false},
		{"12%", false, "0", false},
	}
	for _, tt := range tests {
		got := parseNumber(tt.in, tt.comma)
		if got.Valid != tt.valid {
			t.Errorf("parseNumber(%q, %v).Valid = %v, want %v", tt.in, tt.comma, got.Valid, tt.valid)
			continue
		}
		if tt.valid && !got.Decimal.Equal(dec(tt.want)) {
			t.Errorf("parseNumber(%q, %v) = %v, want %v", tt.in, tt.comma, got.Decimal, tt.want)
		}
	}
}

func TestReadExport_PlainNumbers(t *testing.T) {
	content := "Simbolo;Tipo Transaccion;Cantidad;Moneda;Precio Ponderado\n" +
		"KO;Compra;10;US$;150.125\n" +
		"PEP;Compra;1.000;US$;170.5\n"
	txs, err := ReadExport(strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.True(t, txs[0].WeightedPrice.Decimal.Equal(dec("150.125")), "price = %v", txs[0].WeightedPrice.Decimal)
	assert.True(t, txs[1].Quantity.Decimal.Equal(dec("1")), "a file without \",\" decimals reads \".\" as a decimal point")
}

func TestReadExport_CommaNumbers(t *testing.T) {
	content := "Simbolo;Tipo Transaccion;Cantidad;Moneda;Precio Ponderado\n" +
		"KO;Compra;1.000;US$;150,125\n"
	txs, err := ReadExport(strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Quantity.Decimal.Equal(dec("1000")))
	assert.True(t, txs[0].WeightedPrice.Decimal.Equal(dec("150.125")))
}

func TestReadExport_CSV(t *testing.T) {
	content := header + "\n" +
		"15/03/2024;18/03/2024;12345;BCBA;Compra;999;Cedear NVIDIA;Cedear;NVDAD;10;US$;150,00;1.500,00;5,00;1,05;1.506,05\n" +
		"20/03/2024 14:30:00;22/03/2024;12346;BCBA;Venta;999;Cedear NVIDIA;Cedear;NVDAD;4;US$;160,00;640,00;2,00;0,42;637,58\n" +
		"21/03/2024;21/03/2024;12347;BCBA;Pago de Dividendos;999;Grupo Galicia;Acciones;GGAL;;Peso Argentino;;1.000,00;;;1.000,00\n"

	txs, err := ReadExport(strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, txs, 3)

	buy := txs[0]
	assert.Equal(t, date.New(2024, time.March, 15), buy.TransactionDate)
	assert.Equal(t, date.New(2024, time.March, 18), buy.SettlementDate)
	assert.Equal(t, "12345", buy.Ticket)
	assert.Equal(t, "BCBA", buy.Market)
	assert.Equal(t, brokerfolio.Buy, buy.Operation)
	assert.Equal(t, "Compra", buy.OperationLabel)
	assert.Equal(t, "999", buy.Account)
	assert.Equal(t, "Cedear NVIDIA", buy.Description)
	assert.Equal(t, "Cedear", buy.Instrument)
	assert.Equal(t, "NVDAD", buy.Symbol)
	assert.Equal(t, "US$", buy.CurrencyLabel)
	assert.True(t, buy.Quantity.Decimal.Equal(dec("10")))
	assert.True(t, buy.WeightedPrice.Decimal.Equal(dec("150")))
	assert.True(t, buy.Amount.Decimal.Equal(dec("1500")))
	assert.True(t, buy.Commission.Decimal.Equal(dec("5")))
	assert.True(t, buy.Tax.Decimal.Equal(dec("1.05")))
	assert.True(t, buy.Total.Decimal.Equal(dec("1506.05")))

	sell := txs[1]
	assert.Equal(t, brokerfolio.Sell, sell.Operation)
	assert.Equal(t, date.New(2024, time.March, 20), sell.TransactionDate)

	dividend := txs[2]
	assert.Equal(t, brokerfolio.Other, dividend.Operation)
	assert.False(t, dividend.Quantity.Valid, "empty cells are missing values")
	assert.False(t, dividend.WeightedPrice.Valid)
	assert.True(t, dividend.Total.Valid)
}

func TestReadExport_Positional(t *testing.T) {
	content := "15/03/2024,18/03/2024,1,NYSE,Compra,9,Coca Cola,Cedear,KO,\"2,5\",USD,60,150,0,0,150\n"
	txs, err := ReadExport(strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "KO", txs[0].Symbol)
	assert.Equal(t, "NYSE", txs[0].Market)
	assert.True(t, txs[0].Quantity.Decimal.Equal(dec("2.5")))
	assert.True(t, txs[0].WeightedPrice.Decimal.Equal(dec("60")))
}

func TestReadExport_HeaderOrder(t *testing.T) {
	content := "Reporte de operaciones\n" +
		"Simbolo,Tipo_Transaccion,Cantidad,Precio_Ponderado,Moneda,Mercado,Descripcion\n" +
		"AAPL,Rescate FCI,-3,\"1.234,5\",USD,NASDAQ,Apple\n"
	txs, err := ReadExport(strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "AAPL", txs[0].Symbol)
	assert.Equal(t, brokerfolio.FundRedemption, txs[0].Operation)
	assert.True(t, txs[0].Quantity.Decimal.Equal(dec("3")), "quantity is a magnitude")
	assert.True(t, txs[0].WeightedPrice.Decimal.Equal(dec("1234.5")))
	assert.Equal(t, "Apple", txs[0].Description)
	assert.True(t, txs[0].TransactionDate.IsZero())
}

func TestReadExport_Windows1252(t *testing.T) {
	content := header + "\n" +
		"02/01/2024;04/01/2024;1;BCBA;Suscripción FCI;9;Fondo Común;FCI;FCI1;1.000,5;Peso Argentino;2,00;2.001,00;0;0;2.001,00\n"
	encoded, err := charmap.Windows1252.NewEncoder().String(content)
	require.NoError(t, err)

	txs, err := ReadExport(strings.NewReader(encoded))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, brokerfolio.FundSubscription, txs[0].Operation)
	assert.Equal(t, "Fondo Común", txs[0].Description)
	assert.True(t, txs[0].Quantity.Decimal.Equal(dec("1000.5")))
}

func TestReadExport_HTML(t *testing.T) {
	content := `<html><body>
<table>
  <tr><th>Simbolo</th><th>Tipo Transacción</th><th>Cantidad</th><th>Moneda</th><th>Descripción</th></tr>
  <tr><td>GGAL</td><td>Compra</td><td>1.000</td><td>Peso Argentino</td><td><span>Grupo</span> <b>Galicia</b></td></tr>
  <tr><td></td><td>Compra</td><td>1</td><td>Peso Argentino</td><td>no symbol</td></tr>
  <tr><td>CAUCION</td><td>Compra</td><td>100,5</td><td>Peso Argentino</td><td>Caución</td></tr>
</table>
</body></html>`
	txs, err := ReadExport(strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, txs, 2, "rows without a symbol are skipped")
	assert.Equal(t, "GGAL", txs[0].Symbol)
	assert.Equal(t, "Grupo Galicia", txs[0].Description)
	assert.True(t, txs[0].Quantity.Decimal.Equal(dec("1000")))
	assert.Equal(t, "CAUCION", txs[1].Symbol, "exclusion is not the reader's business")
}

func TestReadExport_RowErrors(t *testing.T) {
	content := "Simbolo;Cantidad;Moneda;Tipo Transaccion\n" +
		"GGAL;10;Pesos;Compra\n" +
		"BROKEN;1\n" +
		"\n" +
		"YPF;5;Pesos;Compra\n"
	txs, err := ReadExport(strings.NewReader(content))
	require.Error(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "GGAL", txs[0].Symbol)
	assert.Equal(t, "YPF", txs[1].Symbol)

	var re *RowError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 3, re.Row)
}

func TestReadExport_Unsupported(t *testing.T) {
	for _, content := range []string{"\xD0\xCF\x11\xE0\xA1\xB1\x1A\xE1rest", "", "<html><body>no table</body></html>"} {
		txs, err := ReadExport(strings.NewReader(content))
		assert.ErrorIs(t, err, ErrUnsupportedFormat, "%q", content)
		assert.Nil(t, txs)
	}
}

func TestExportFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.csv")
	content := "Simbolo;Cantidad;Moneda;Tipo Transaccion;Precio Ponderado\nKO;2;USD;Compra;60\nBAD\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	txs, err := ExportFile{Path: path}.Transactions(t.Context())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "KO", txs[0].Symbol)

	_, err = ExportFile{Path: filepath.Join(dir, "missing.csv")}.Transactions(t.Context())
	assert.Error(t, err)
}
