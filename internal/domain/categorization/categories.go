// Package categorization assigns a category label to each transaction using
// a layered strategy: exact keyword matching, fuzzy matching for noisy
// merchant strings, and a Gemini-backed batch classifier for everything else.
// Classification failures degrade to the generic fallback labels instead of
// failing an import.
package categorization

import "github.com/caixafacil/caixafacil/internal/domain/transactions"

// Fallback labels assigned when no classifier produces a category.
const (
	FallbackIncome  = "outras_receitas"
	FallbackExpense = "outras_despesas"
)

// IncomeCategories is the fixed label set for money in.
var IncomeCategories = []string{
	"vendas",
	"prestacao_servicos",
	"juros_rendimentos",
	"emprestimos_recebidos",
	"outras_receitas",
}

// ExpenseCategories is the fixed label set for money out.
var ExpenseCategories = []string{
	"fornecedores",
	"folha_pagamento",
	"aluguel",
	"impostos_taxas",
	"agua_luz_internet",
	"marketing",
	"transporte",
	"alimentacao",
	"manutencao",
	"tarifas_bancarias",
	"emprestimos_pagos",
	"outras_despesas",
}

// categoryKeywords maps each label to the statement vocabulary that implies
// it. Keywords are matched case-insensitively inside descriptions.
var categoryKeywords = map[string][]string{
	// Income
	"vendas":                {"venda", "pix recebido", "ted recebida", "doc recebido", "recebimento cartao", "maquininha", "pagseguro", "mercado pago", "stone", "cielo"},
	"prestacao_servicos":    {"servico prestado", "honorarios", "consultoria", "nota fiscal"},
	"juros_rendimentos":     {"rendimento", "juros sobre", "dividendos", "aplicacao resgate"},
	"emprestimos_recebidos": {"emprestimo liberado", "credito liberado", "capital de giro"},

	// Expense
	"fornecedores":      {"fornecedor", "compra mercadoria", "distribuidora", "atacado", "atacadao"},
	"folha_pagamento":   {"salario", "folha", "pagamento funcionario", "pro-labore", "prolabore", "fgts", "inss folha"},
	"aluguel":           {"aluguel", "locacao", "condominio"},
	"impostos_taxas":    {"darf", "das ", "simples nacional", "imposto", "tributo", "iptu", "icms", "iss"},
	"agua_luz_internet": {"energia", "enel", "light", "cemig", "copel", "sabesp", "sanepar", "vivo", "claro", "tim ", "oi fibra", "internet"},
	"marketing":         {"google ads", "meta ads", "facebook", "instagram ads", "anuncio", "grafica"},
	"transporte":        {"uber", "99app", "99 pop", "combustivel", "posto", "pedagio", "estacionamento", "frete"},
	"alimentacao":       {"ifood", "restaurante", "lanchonete", "padaria", "mercado", "supermercado"},
	"manutencao":        {"manutencao", "conserto", "reparo", "assistencia tecnica"},
	"tarifas_bancarias": {"tarifa", "cesta de servicos", "anuidade", "iof", "taxa bancaria", "manutencao conta"},
	"emprestimos_pagos": {"parcela emprestimo", "amortizacao", "financiamento"},
}

// CategoriesFor returns the vocabulary for a transaction type.
func CategoriesFor(t transactions.Type) []string {
	if t == transactions.TypeIncome {
		return IncomeCategories
	}
	return ExpenseCategories
}

// FallbackFor returns the generic label for a transaction type.
func FallbackFor(t transactions.Type) string {
	if t == transactions.TypeIncome {
		return FallbackIncome
	}
	return FallbackExpense
}

// ValidCategory reports whether label belongs to the vocabulary of type t.
func ValidCategory(t transactions.Type, label string) bool {
	for _, c := range CategoriesFor(t) {
		if c == label {
			return true
		}
	}
	return false
}

// KnownCategory reports whether label belongs to either vocabulary.
func KnownCategory(label string) bool {
	return ValidCategory(transactions.TypeIncome, label) ||
		ValidCategory(transactions.TypeExpense, label)
}

// typeOf returns which transaction type a category label belongs to, used
// when rebuilding match metadata.
func typeOf(label string) transactions.Type {
	for _, c := range IncomeCategories {
		if c == label {
			return transactions.TypeIncome
		}
	}
	return transactions.TypeExpense
}
