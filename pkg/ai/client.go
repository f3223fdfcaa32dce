package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

var log = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

const systemPrompt = "You are a creative game master generating scenarios for a futuristic government council game. " +
	"Create engaging, morally complex situations that test the players' decision-making abilities. " +
	"Always answer with a single JSON object and nothing else."

// Client предоставляет интерфейс для работы с API нейросети.
// Все методы возвращают ошибку после исчерпания повторов; детерминированные
// fallback-ответы подставляет вызывающая сторона (см. fallback.go).
type Client struct {
	client     *openai.Client
	modelName  string
	timeout    time.Duration
	maxRetries int
}

// Config содержит конфигурацию для клиента нейросети.
type Config struct {
	APIKey     string
	BaseURL    string
	ModelName  string
	Timeout    time.Duration
	MaxRetries int
}

// New создает новый экземпляр клиента нейросети.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("не указан API ключ")
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "gpt-4"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:     openai.NewClientWithConfig(config),
		modelName:  cfg.ModelName,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// GenerateScenario генерирует заголовок и описание сценария раунда.
func (c *Client) GenerateScenario(ctx context.Context, gameCtx GameContext) (*ScenarioResult, error) {
	prompt := buildScenarioPrompt(gameCtx)
	raw, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseScenario(raw)
}

// GenerateOptions генерирует ровно четыре варианта выбора для сценария.
func (c *Client) GenerateOptions(ctx context.Context, title, description string) ([]string, error) {
	prompt := buildOptionsPrompt(title, description)
	raw, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseOptions(raw)
}

// GenerateOutcome генерирует нарратив итога и карту дельт ресурсов по
// победившему варианту и распределению голосов.
func (c *Client) GenerateOutcome(ctx context.Context, req OutcomeRequest) (*OutcomeResult, error) {
	prompt := buildOutcomePrompt(req)
	raw, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseOutcome(raw)
}

// GenerateIncentive генерирует скрытый стимул: текст, целевой вариант и
// бонус к весу голоса (зажимается в [-0.5, +0.5] парсером).
func (c *Client) GenerateIncentive(ctx context.Context, req IncentiveRequest) (*IncentiveResult, error) {
	prompt := buildIncentivePrompt(req)
	raw, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseIncentive(raw, req.Options)
}

// generate выполняет запрос с повторами и проверкой, что ответ - валидный JSON.
func (c *Client) generate(ctx context.Context, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	attempts := 0
	for attempts < c.maxRetries {
		attempts++

		req := openai.ChatCompletionRequest{
			Model: c.modelName,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: userPrompt,
				},
			},
			Temperature: 0.8,
			MaxTokens:   1000,
			TopP:        0.95,
		}

		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			log.Error().Err(err).Int("attempt", attempts).Msg("Ошибка при вызове CreateChatCompletion")
			if attempts >= c.maxRetries {
				return "", fmt.Errorf("ошибка AI после %d попыток: %w", attempts, err)
			}
			time.Sleep(time.Duration(attempts) * time.Second)
			continue
		}

		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			log.Warn().Int("attempt", attempts).Msg("Пустой ответ от AI")
			if attempts >= c.maxRetries {
				return "", errors.New("пустой ответ от API после нескольких попыток")
			}
			time.Sleep(time.Duration(attempts) * time.Second)
			continue
		}

		responseContent := extractJSON(resp.Choices[0].Message.Content)

		var js json.RawMessage
		if json.Unmarshal([]byte(responseContent), &js) != nil {
			log.Warn().Int("attempt", attempts).Msg("Ответ AI не является валидным JSON, пробуем снова...")
			if attempts >= c.maxRetries {
				return "", fmt.Errorf("ответ AI не является валидным JSON после %d попыток", attempts)
			}
			time.Sleep(time.Duration(attempts) * time.Second)
			continue
		}

		log.Debug().Str("model", c.modelName).Int("attempt", attempts).Msg("Получен ответ от API")
		return responseContent, nil
	}

	return "", errors.New("не удалось получить валидный ответ от API после нескольких попыток")
}
