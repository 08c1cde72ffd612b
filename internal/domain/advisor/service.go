// Package advisor answers free-form financial questions with a fixed
// small-business advisor persona, grounding the model on the user's own
// cash-flow summary.
package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/caixafacil/caixafacil/internal/domain/transactions"
	"github.com/caixafacil/caixafacil/pkg/money"
)

const maxQuestionLen = 2000

// Summarizer provides the cash-flow context injected into the prompt.
type Summarizer interface {
	Summary(ctx context.Context, accountID *uuid.UUID, months int) (*transactions.Summary, error)
}

// Service proxies advisor questions to Gemini.
type Service struct {
	client     *genai.Client
	model      string
	summarizer Summarizer
	logger     *slog.Logger
}

func NewService(ctx context.Context, apiKey, model string, summarizer Summarizer, logger *slog.Logger) (*Service, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Service{client: client, model: model, summarizer: summarizer, logger: logger}, nil
}

// Ask answers one question. The reply is plain text for the chat widget.
func (s *Service) Ask(ctx context.Context, accountID *uuid.UUID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question is required")
	}
	question = truncateOnRune(question, maxQuestionLen)

	summary, err := s.summarizer.Summary(ctx, accountID, 6)
	if err != nil {
		s.logger.Warn("advisor summary unavailable, answering without context", "error", err)
		summary = nil
	}

	prompt := buildAdvisorPrompt(question, summary)
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return answer, nil
}

// truncateOnRune caps s at max bytes without cutting through a UTF-8
// sequence, which matters for accented Portuguese text.
func truncateOnRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func buildAdvisorPrompt(question string, summary *transactions.Summary) string {
	var b strings.Builder

	b.WriteString("Você é um consultor financeiro para pequenos negócios brasileiros.\n")
	b.WriteString("Responda em português, de forma direta e prática, em no máximo três parágrafos.\n")
	b.WriteString("Não invente números que não estejam no resumo abaixo.\n\n")

	if summary != nil && len(summary.Months) > 0 {
		b.WriteString("Resumo do fluxo de caixa do usuário:\n")
		for _, m := range summary.Months {
			fmt.Fprintf(&b, "- %s: receitas %s, despesas %s, resultado %s\n",
				m.Month,
				money.New(m.IncomeCents, money.BRL).Display(),
				money.New(m.ExpenseCents, money.BRL).Display(),
				money.New(m.NetCents, money.BRL).Display())
		}
		fmt.Fprintf(&b, "Resultado acumulado: %s\n", summary.NetDisplay)
		fmt.Fprintf(&b, "Projeção para o próximo mês: %s\n", summary.ProjectedDisplay)

		if len(summary.Categories) > 0 {
			b.WriteString("\nMaiores categorias no período:\n")
			limit := min(len(summary.Categories), 5)
			for _, c := range summary.Categories[:limit] {
				fmt.Fprintf(&b, "- %s (%s): %s em %d lançamentos\n",
					c.Category, c.Type, money.New(c.TotalCents, money.BRL).Display(), c.Count)
			}
		}
		b.WriteString("\n")
	} else {
		b.WriteString("O usuário ainda não tem transações importadas.\n\n")
	}

	b.WriteString("Pergunta do usuário:\n")
	b.WriteString(question)
	b.WriteString("\n")

	return b.String()
}
