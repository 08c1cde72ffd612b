package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caixafacil/caixafacil/internal/domain/import/sniffer"
	"github.com/caixafacil/caixafacil/internal/domain/transactions"
)

func detect(t *testing.T, data []byte) (*sniffer.FileConfig, *sniffer.ColumnMap) {
	t.Helper()
	cfg, err := sniffer.DetectConfig(data)
	require.NoError(t, err)
	cols, err := sniffer.DetectColumns(cfg)
	require.NoError(t, err)
	return cfg, cols
}

func TestParseCSVSignedCanonicalLayout(t *testing.T) {
	data := []byte("data;descrição;valor\n" +
		"05/01/2026;PIX RECEBIDO JOAO;1.500,00\n" +
		"06/01/2026;PAGAMENTO FORNECEDOR ABC;-230,50\n" +
		"32/01/2026;LINHA RUIM;10,00\n" +
		"07/01/2026;TAXA ZERO;0,00\n")

	cfg, cols := detect(t, data)
	result, err := NewParser().ParseCSV(data, cfg, cols)
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalRows)
	assert.Equal(t, 2, result.ParsedRows)
	assert.Equal(t, 1, result.SkippedRows)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "date", result.Errors[0].Column)
	assert.Equal(t, "32/01/2026", result.Errors[0].RawData)

	require.Len(t, result.Rows, 2)

	assert.Equal(t, "PIX RECEBIDO JOAO", result.Rows[0].Description)
	assert.Equal(t, int64(150000), result.Rows[0].AmountCents)
	assert.Equal(t, transactions.TypeIncome, result.Rows[0].Type)
	assert.Equal(t, "2026-01-05", result.Rows[0].Date.Format("2006-01-02"))

	assert.Equal(t, int64(-23050), result.Rows[1].AmountCents)
	assert.Equal(t, transactions.TypeExpense, result.Rows[1].Type)
}

func TestParseCSVUnsignedWithTypeColumn(t *testing.T) {
	data := []byte("data;historico;valor;tipo\n" +
		"05/01/2026;VENDA BALCAO;100,00;C\n" +
		"06/01/2026;COMPRA MATERIAL;50,00;D\n")

	cfg, cols := detect(t, data)
	result, err := NewParser().ParseCSV(data, cfg, cols)
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)

	// The type column wins; expense values are re-signed negative.
	assert.Equal(t, transactions.TypeIncome, result.Rows[0].Type)
	assert.Equal(t, int64(10000), result.Rows[0].AmountCents)
	assert.Equal(t, transactions.TypeExpense, result.Rows[1].Type)
	assert.Equal(t, int64(-5000), result.Rows[1].AmountCents)
}

func TestParseCSVPositionalWithMetadataLines(t *testing.T) {
	data := []byte("Banco Exemplo S.A.\n" +
		"dt mov;lançamento;montante\n" +
		"05/01/26;RENDIMENTO POUPANCA;10,00\n" +
		"06/01/26;COMPRA PADARIA;15,00\n")

	cfg, cols := detect(t, data)
	assert.Equal(t, 1, cfg.SkipLines)

	result, err := NewParser().ParseCSV(data, cfg, cols)
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)

	// Unsigned file without a type column: description hints decide.
	assert.Equal(t, transactions.TypeIncome, result.Rows[0].Type)
	assert.Equal(t, int64(1000), result.Rows[0].AmountCents)
	assert.Equal(t, transactions.TypeExpense, result.Rows[1].Type)
	assert.Equal(t, int64(-1500), result.Rows[1].AmountCents)
}

func TestParseCSVSupplierEnrichesDescription(t *testing.T) {
	data := []byte("data;descrição;valor;fornecedor\n" +
		"05/01/2026;PAGAMENTO NF 123;-300,00;Distribuidora Silva\n" +
		"06/01/2026;PAGAMENTO DISTRIBUIDORA SILVA;-100,00;Distribuidora Silva\n")

	cfg, cols := detect(t, data)
	result, err := NewParser().ParseCSV(data, cfg, cols)
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)

	assert.Equal(t, "PAGAMENTO NF 123 - Distribuidora Silva", result.Rows[0].Description)
	// Already mentioned in the description: not appended twice.
	assert.Equal(t, "PAGAMENTO DISTRIBUIDORA SILVA", result.Rows[1].Description)
}

func TestClassifyType(t *testing.T) {
	tests := []struct {
		name        string
		typeCell    string
		amountCents int64
		description string
		signedFile  bool
		want        transactions.Type
	}{
		{"type column debit", "Débito", 1000, "QUALQUER", true, transactions.TypeExpense},
		{"type column credit", "entrada", -1000, "QUALQUER", true, transactions.TypeIncome},
		{"signed file negative", "", -1000, "QUALQUER", true, transactions.TypeExpense},
		{"signed file positive", "", 1000, "QUALQUER", true, transactions.TypeIncome},
		{"unsigned income hint", "", 1000, "DEPOSITO EM CONTA", false, transactions.TypeIncome},
		{"unsigned expense hint", "", 1000, "SAQUE 24H", false, transactions.TypeExpense},
		{"unsigned no hint defaults to expense", "", 1000, "QUALQUER", false, transactions.TypeExpense},
		{"unknown type cell falls through", "X", -1000, "QUALQUER", true, transactions.TypeExpense},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyType(tt.typeCell, tt.amountCents, tt.description, tt.signedFile)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsCanonicalLayout(t *testing.T) {
	assert.True(t, isCanonicalLayout([]string{"data", "descrição", "valor"}))
	assert.True(t, isCanonicalLayout([]string{"Data", "Historico", "Valor", "Saldo"}))
	assert.False(t, isCanonicalLayout([]string{"dt mov", "lançamento", "montante"}))
}
