package categorization

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/caixafacil/caixafacil/internal/domain/transactions"
)

func TestValidCategory(t *testing.T) {
	assert.True(t, ValidCategory(transactions.TypeIncome, "vendas"))
	assert.True(t, ValidCategory(transactions.TypeExpense, "fornecedores"))

	// Labels do not cross between the two vocabularies.
	assert.False(t, ValidCategory(transactions.TypeExpense, "vendas"))
	assert.False(t, ValidCategory(transactions.TypeIncome, "fornecedores"))
}

func TestKnownCategory(t *testing.T) {
	for _, label := range IncomeCategories {
		assert.True(t, KnownCategory(label), label)
	}
	for _, label := range ExpenseCategories {
		assert.True(t, KnownCategory(label), label)
	}

	assert.False(t, KnownCategory(""))
	assert.False(t, KnownCategory("Vendas"))
	assert.False(t, KnownCategory("padaria"))
}
