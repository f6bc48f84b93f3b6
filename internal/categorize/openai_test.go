package categorize

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tally/internal/model"
)

type fakeChat struct {
	reply string
	err   error
	got   openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.got = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply}},
	}}, nil
}

func TestOpenAICategorize(t *testing.T) {
	chat := &fakeChat{reply: " Food & Dining\n"}
	o := &OpenAI{client: chat, model: "test-model"}

	res, err := o.Categorize(context.Background(), "UPI/ZOMATO", decimal.RequireFromString("412.5"), model.Debit)
	require.NoError(t, err)
	assert.Equal(t, "Food & Dining", res.Category)
	assert.True(t, OpenAIConfidence.Equal(res.Confidence))

	assert.Equal(t, "test-model", chat.got.Model)
	require.Len(t, chat.got.Messages, 2)
	assert.Contains(t, chat.got.Messages[0].Content, "ATM Withdrawal")
	assert.Contains(t, chat.got.Messages[1].Content, "UPI/ZOMATO")
	assert.Contains(t, chat.got.Messages[1].Content, "412.50")
	assert.Contains(t, chat.got.Messages[1].Content, "debit")
}

func TestOpenAIFailures(t *testing.T) {
	amt := decimal.RequireFromString("1")

	o := &OpenAI{client: &fakeChat{reply: "Groceries"}, model: "m"}
	_, err := o.Categorize(context.Background(), "x", amt, model.Debit)
	assert.True(t, errors.Is(err, ErrNoMatch))

	boom := errors.New("429 too many requests")
	o = &OpenAI{client: &fakeChat{err: boom}, model: "m"}
	_, err = o.Categorize(context.Background(), "x", amt, model.Debit)
	assert.True(t, errors.Is(err, boom))
}

func TestNewOpenAIDefaults(t *testing.T) {
	o := NewOpenAI("sk-test", "", "")
	assert.Equal(t, openai.GPT4oMini, o.model)
	assert.NotNil(t, o.client)
}
