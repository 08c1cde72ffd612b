package categorization

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/caixafacil/caixafacil/internal/domain/transactions"
)

// Item is one transaction handed to the batch classifier.
type Item struct {
	Description string
	Type        transactions.Type
	AmountCents int64
}

// Classifier assigns category labels to a batch of transactions. The
// returned slice is positionally aligned with items; an empty string means
// the classifier could not decide and the caller applies the fallback.
type Classifier interface {
	ClassifyBatch(ctx context.Context, items []Item) ([]string, error)
}

// GeminiClassifier sends transaction batches to Gemini and parses the
// strict-JSON response. Each item carries an explicit index that the model
// must echo back, so a partial or reordered response cannot silently assign
// categories to the wrong rows.
type GeminiClassifier struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiClassifier creates the Gemini-backed classifier.
func NewGeminiClassifier(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiClassifier, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClassifier{client: client, model: model, logger: logger}, nil
}

type classifiedItem struct {
	Index    int    `json:"index"`
	Category string `json:"category"`
}

// ClassifyBatch asks the model for one category per item. No retry: a
// failed call returns an error and the whole batch falls back upstream.
func (g *GeminiClassifier) ClassifyBatch(ctx context.Context, items []Item) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}

	prompt := buildClassifyPrompt(items)

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	clean := cleanModelJSON(rawText)

	var classified []classifiedItem
	if err := json.Unmarshal([]byte(clean), &classified); err != nil {
		return nil, fmt.Errorf("unmarshal model response: %w", err)
	}

	// Place answers by echoed index; anything missing, out of range, or
	// outside the item's vocabulary stays empty and defaults upstream.
	labels := make([]string, len(items))
	for _, c := range classified {
		if c.Index < 0 || c.Index >= len(items) {
			g.logger.Warn("model echoed out-of-range index", "index", c.Index, "batch_size", len(items))
			continue
		}
		label := strings.TrimSpace(c.Category)
		if !ValidCategory(items[c.Index].Type, label) {
			g.logger.Warn("model returned unknown category", "index", c.Index, "category", label)
			continue
		}
		labels[c.Index] = label
	}

	return labels, nil
}

func buildClassifyPrompt(items []Item) string {
	var b strings.Builder

	b.WriteString("Você é um classificador de transações bancárias de pequenos negócios brasileiros.\n\n")
	b.WriteString("Tarefa:\n")
	b.WriteString("- Classifique CADA transação abaixo em exatamente uma categoria.\n")
	b.WriteString("- Use somente as categorias listadas para o tipo da transação.\n")
	b.WriteString("- Responda com JSON ESTRITO: um array de objetos, nada além disso.\n\n")

	b.WriteString("Categorias para receitas (income):\n")
	for _, c := range IncomeCategories {
		b.WriteString("- " + c + "\n")
	}
	b.WriteString("\nCategorias para despesas (expense):\n")
	for _, c := range ExpenseCategories {
		b.WriteString("- " + c + "\n")
	}

	b.WriteString("\nTransações:\n")
	for i, item := range items {
		fmt.Fprintf(&b, "%d. [%s] %s (R$ %.2f)\n", i, item.Type, item.Description, float64(item.AmountCents)/100)
	}

	b.WriteString("\nFormato da resposta, um objeto por transação:\n")
	b.WriteString("[{\"index\": 0, \"category\": \"vendas\"}, ...]\n")
	b.WriteString("O campo \"index\" deve repetir o número da transação.\n")
	b.WriteString("Não use cercas de código Markdown. A resposta deve começar com \"[\" e terminar com \"]\".\n")

	return b.String()
}

// cleanModelJSON strips Markdown fences and surrounding junk when the model
// ignores the formatting instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only the outermost array when extra text survives.
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
