package categorization

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caixafacil/caixafacil/internal/domain/transactions"
)

// stubClassifier records the batches it receives and answers from a fixed
// description-to-category map.
type stubClassifier struct {
	answers map[string]string
	batches [][]Item
	err     error
}

func (s *stubClassifier) ClassifyBatch(_ context.Context, items []Item) ([]string, error) {
	s.batches = append(s.batches, items)
	if s.err != nil {
		return nil, s.err
	}
	labels := make([]string, len(items))
	for i, item := range items {
		labels[i] = s.answers[item.Description]
	}
	return labels, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestCategorizeAllLocalLayersFirst(t *testing.T) {
	stub := &stubClassifier{answers: map[string]string{}}
	svc := NewService(stub, 30, testLogger())

	items := []Item{
		{Description: "PIX RECEBIDO LOJA", Type: transactions.TypeIncome, AmountCents: 150000},
		{Description: "ALUGUEL GALPAO", Type: transactions.TypeExpense, AmountCents: -320000},
	}

	results := svc.CategorizeAll(context.Background(), items)
	require.Len(t, results, 2)
	assert.Equal(t, Result{Category: "vendas"}, results[0])
	assert.Equal(t, Result{Category: "aluguel"}, results[1])

	// Everything resolved locally, nothing reaches the classifier.
	assert.Empty(t, stub.batches)
}

func TestCategorizeAllSendsUnresolvedToClassifier(t *testing.T) {
	stub := &stubClassifier{answers: map[string]string{
		"QQ 0001": "marketing",
		"QQ 0002": "transporte",
	}}
	svc := NewService(stub, 30, testLogger())

	items := []Item{
		{Description: "QQ 0001", Type: transactions.TypeExpense, AmountCents: -5000},
		{Description: "TARIFA MENSAL", Type: transactions.TypeExpense, AmountCents: -1990},
		{Description: "QQ 0002", Type: transactions.TypeExpense, AmountCents: -3000},
	}

	results := svc.CategorizeAll(context.Background(), items)
	require.Len(t, results, 3)

	// Order is preserved regardless of which layer answered.
	assert.Equal(t, Result{Category: "marketing"}, results[0])
	assert.Equal(t, Result{Category: "tarifas_bancarias"}, results[1])
	assert.Equal(t, Result{Category: "transporte"}, results[2])

	require.Len(t, stub.batches, 1)
	assert.Len(t, stub.batches[0], 2)
}

func TestCategorizeAllBatchSplitting(t *testing.T) {
	stub := &stubClassifier{answers: map[string]string{
		"QQ 0001": "marketing",
		"QQ 0002": "marketing",
		"QQ 0003": "marketing",
	}}
	svc := NewService(stub, 2, testLogger())

	items := []Item{
		{Description: "QQ 0001", Type: transactions.TypeExpense},
		{Description: "QQ 0002", Type: transactions.TypeExpense},
		{Description: "QQ 0003", Type: transactions.TypeExpense},
	}

	results := svc.CategorizeAll(context.Background(), items)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, "marketing", r.Category)
		assert.False(t, r.Defaulted)
	}

	// Three unresolved rows with batch size 2 means two sequential calls.
	require.Len(t, stub.batches, 2)
	assert.Len(t, stub.batches[0], 2)
	assert.Len(t, stub.batches[1], 1)
}

func TestCategorizeAllClassifierFailureDefaults(t *testing.T) {
	stub := &stubClassifier{err: errors.New("model unavailable")}
	svc := NewService(stub, 30, testLogger())

	items := []Item{
		{Description: "PIX RECEBIDO LOJA", Type: transactions.TypeIncome},
		{Description: "QQ 0001", Type: transactions.TypeExpense},
		{Description: "QQ 0002", Type: transactions.TypeIncome},
	}

	results := svc.CategorizeAll(context.Background(), items)
	require.Len(t, results, 3)

	// Local matches survive the failure.
	assert.Equal(t, Result{Category: "vendas"}, results[0])

	// Unresolved rows get the type-appropriate fallback, flagged.
	assert.Equal(t, Result{Category: FallbackExpense, Defaulted: true}, results[1])
	assert.Equal(t, Result{Category: FallbackIncome, Defaulted: true}, results[2])
}

func TestCategorizeAllEmptyClassifierAnswerDefaults(t *testing.T) {
	stub := &stubClassifier{answers: map[string]string{}}
	svc := NewService(stub, 30, testLogger())

	items := []Item{
		{Description: "QQ 0001", Type: transactions.TypeExpense},
	}

	results := svc.CategorizeAll(context.Background(), items)
	require.Len(t, results, 1)
	assert.Equal(t, Result{Category: FallbackExpense, Defaulted: true}, results[0])
}

func TestCategorizeAllNilClassifier(t *testing.T) {
	svc := NewService(nil, 30, testLogger())

	items := []Item{
		{Description: "QQ 0001", Type: transactions.TypeIncome},
	}

	results := svc.CategorizeAll(context.Background(), items)
	require.Len(t, results, 1)
	assert.Equal(t, Result{Category: FallbackIncome, Defaulted: true}, results[0])
}
