package openai

import (
	"context"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	domainllm "seoflood/app/internal/domain/llm"
)

// CompleterOptions configures the chat completion backed Completer.
type CompleterOptions struct {
	Client      *Client
	Model       string
	Temperature float64
}

type completer struct {
	client      *Client
	logger      *logrus.Logger
	model       string
	temperature float64
}

var _ domainllm.Completer = (*completer)(nil)

const defaultCompleterTemperature = 0.4

// NewCompleter constructs a Completer for one model.
func NewCompleter(opts CompleterOptions) (domainllm.Completer, error) {
	if opts.Client == nil {
		return nil, eris.New("llm client is required")
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, eris.New("completion model is required")
	}

	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = defaultCompleterTemperature
	}

	return &completer{
		client:      opts.Client,
		logger:      opts.Client.logger,
		model:       model,
		temperature: temperature,
	}, nil
}

func (c *completer) Complete(ctx context.Context, req domainllm.Request) (string, error) {
	userInstruction := strings.TrimSpace(req.UserInstruction)
	if userInstruction == "" {
		return "", eris.New("user instruction is required")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system := strings.TrimSpace(req.SystemInstruction); system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(userInstruction))

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(c.temperature),
	}
	if req.ExpectJSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	fields := logrus.Fields{"model": c.model, "expect_json": req.ExpectJSON}

	completion, err := c.client.chat.New(ctx, params)
	if err != nil {
		c.logError(fields, err, "requesting chat completion")
		return "", eris.Wrap(err, "requesting chat completion")
	}

	if len(completion.Choices) == 0 {
		err := eris.New("llm completion returned no choices")
		c.logError(fields, err, "processing chat completion")
		return "", err
	}

	choice := completion.Choices[0]
	if reason := strings.TrimSpace(choice.FinishReason); strings.EqualFold(reason, "content_filter") {
		err := eris.New("llm blocked the request via content filter")
		c.logError(fields, err, "completion blocked")
		return "", err
	}

	if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
		err := eris.Errorf("llm refused the request: %s", refusal)
		c.logError(fields, err, "completion refused")
		return "", err
	}

	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		err := eris.New("llm response content is empty")
		c.logError(fields, err, "empty llm response")
		return "", err
	}

	return content, nil
}

func (c *completer) logError(fields logrus.Fields, err error, message string) {
	if c.logger == nil || err == nil {
		return
	}

	entry := c.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
