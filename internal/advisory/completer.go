package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Completer sends one prompt pair to a text-completion service and returns the raw text.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Name() string
}

// Config selects and configures the relay. The API key travels here and
// nowhere else.
type Config struct {
	Provider  string `yaml:"provider"` // openai, bedrock
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	Region    string `yaml:"region"` // bedrock only
}

// NewCompleter builds the relay named by cfg.Provider.
func NewCompleter(ctx context.Context, cfg Config) (Completer, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIRelay(cfg.APIKey, cfg.Model, cfg.MaxTokens)
	case "bedrock":
		return NewBedrockRelay(ctx, cfg.Region, cfg.Model, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown advisory provider %q", cfg.Provider)
	}
}

// chatClient is the slice of the OpenAI client the relay uses.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

type openaiClientWrapper struct {
	client openai.Client
}

func (w *openaiClientWrapper) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return w.client.Chat.Completions.New(ctx, params)
}

// OpenAIRelay talks to the OpenAI chat completions API.
type OpenAIRelay struct {
	client    chatClient
	model     string
	maxTokens int
}

func NewOpenAIRelay(apiKey, model string, maxTokens int) (*OpenAIRelay, error) {
	if apiKey == "" {
		return nil, errors.New("openai relay requires an api key")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return newOpenAIRelayWithClient(&openaiClientWrapper{client: client}, model, maxTokens), nil
}

func newOpenAIRelayWithClient(client chatClient, model string, maxTokens int) *OpenAIRelay {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &OpenAIRelay{client: client, model: model, maxTokens: maxTokens}
}

func (r *OpenAIRelay) Name() string { return "openai" }

func (r *OpenAIRelay) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(r.model),
		MaxTokens: openai.Int(int64(r.maxTokens)),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	}
	completion, err := r.client.CreateChatCompletion(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to invoke OpenAI: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("empty response from OpenAI")
	}
	return completion.Choices[0].Message.Content, nil
}

// bedrockInvoker is the slice of the Bedrock runtime client the relay uses.
type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type claudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	System           string          `json:"system,omitempty"`
	Messages         []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// BedrockRelay invokes an Anthropic model hosted on AWS Bedrock.
// Credentials come from the default AWS chain.
type BedrockRelay struct {
	client    bedrockInvoker
	model     string
	maxTokens int
}

func NewBedrockRelay(ctx context.Context, region, modelID string, maxTokens int) (*BedrockRelay, error) {
	if modelID == "" {
		return nil, errors.New("bedrock relay requires a model id")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &BedrockRelay{client: bedrockruntime.NewFromConfig(cfg), model: modelID, maxTokens: maxTokens}, nil
}

func (r *BedrockRelay) Name() string { return "bedrock" }

func (r *BedrockRelay) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(claudeRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        r.maxTokens,
		System:           systemPrompt,
		Messages:         []claudeMessage{{Role: "user", Content: userPrompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	out, err := r.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(r.model),
		Body:        body,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke model: %w", err)
	}

	var resp claudeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", errors.New("empty response from model")
	}
	return resp.Content[0].Text, nil
}
