package categorize

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
)

// OpenAIConfidence is reported for every category the model picks.
var OpenAIConfidence = decimal.RequireFromString("0.85")

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI asks a chat model to pick one of Categories.
type OpenAI struct {
	client chatCompleter
	model  string
}

// NewOpenAI creates an OpenAI categorizer. An empty baseURL uses the public API.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAI) Categorize(ctx context.Context, description string, amount decimal.Decimal, direction model.Direction) (Result, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.1,
		MaxTokens:   10,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(
				"Transaction description: %s\nAmount: %s\nType: %s",
				description, amount.StringFixed(2), direction)},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("openai: empty response")
	}

	reply := resp.Choices[0].Message.Content
	category, ok := Known(reply)
	if !ok {
		return Result{}, fmt.Errorf("openai: reply %q: %w", reply, ErrNoMatch)
	}
	return Result{Category: category, Confidence: OpenAIConfidence}, nil
}

func systemPrompt() string {
	return `Categorize the financial transaction into exactly one of these categories: ` +
		strings.Join(Categories, ", ") + `.

Common patterns:
- Zomato, Swiggy, restaurants, food delivery: Food & Dining
- Uber, Ola, fuel, parking, metro: Transportation
- Amazon, Flipkart, clothing: Shopping
- Hospitals, medicines: Healthcare
- Electricity, water, internet, phone bills: Utilities
- Salary, income, payments received: Salary/Income
- NEFT, IMPS, bank transfers: Transfer
- ATM withdrawals: ATM Withdrawal
- Software and subscriptions: Online Services

Return only the category name, nothing else.`
}
