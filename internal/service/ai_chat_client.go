package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// chat completions 的 JSON 形状，OpenAI 与 DeepSeek 共用。
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type aiChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

type aiChatResponse struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// providerProfile 是单次调用实际生效的提供商配置。
type providerProfile struct {
	label  string
	apiKey string
	base   string
	model  string
}

// aiChatClient 封装 OpenAI/DeepSeek 的 chat completions 调用，
// 按系统设置里的提供商择一发起请求。
type aiChatClient struct {
	settings             *SystemSettingService
	http                 httpDoer
	openAIBaseURL        string
	openAIModel          string
	deepSeekBaseURL      string
	deepSeekModel        string
	defaultOpenAIModel   string
	defaultDeepSeekModel string
}

func newAIChatClient(settings *SystemSettingService, defaultOpenAIModel, defaultDeepSeekModel string) *aiChatClient {
	return &aiChatClient{
		settings:             settings,
		http:                 &http.Client{Timeout: 60 * time.Second},
		openAIBaseURL:        "https://api.openai.com/v1",
		openAIModel:          strings.TrimSpace(defaultOpenAIModel),
		deepSeekBaseURL:      "https://api.deepseek.com/v1",
		deepSeekModel:        strings.TrimSpace(defaultDeepSeekModel),
		defaultOpenAIModel:   strings.TrimSpace(defaultOpenAIModel),
		defaultDeepSeekModel: strings.TrimSpace(defaultDeepSeekModel),
	}
}

func (c *aiChatClient) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: 20 * time.Second}
		return
	}
	c.http = client
}

func (c *aiChatClient) SetOpenAIBaseURL(base string) {
	c.openAIBaseURL = strings.TrimRight(strings.TrimSpace(base), "/")
}

func (c *aiChatClient) SetDeepSeekBaseURL(base string) {
	c.deepSeekBaseURL = strings.TrimRight(strings.TrimSpace(base), "/")
}

func (c *aiChatClient) SetOpenAIModel(model string) {
	model = strings.TrimSpace(model)
	if model == "" {
		return
	}
	c.openAIModel = model
}

func (c *aiChatClient) SetDeepSeekModel(model string) {
	model = strings.TrimSpace(model)
	if model == "" {
		return
	}
	c.deepSeekModel = model
}

// call 读取当前系统设置后发起一次对话请求
func (c *aiChatClient) call(ctx context.Context, req aiChatRequest) (aiChatResponse, error) {
	settings, err := c.settings.GetSettings()
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("读取系统设置失败: %w", err)
	}
	return c.callWithSettings(ctx, settings, req)
}

func (c *aiChatClient) callWithSettings(ctx context.Context, settings SystemSettings, req aiChatRequest) (aiChatResponse, error) {
	profile, err := c.resolveProvider(settings)
	if err != nil {
		return aiChatResponse{}, err
	}

	payload := chatCompletionRequest{
		Model: profile.model,
		Messages: []chatMessage{
			{Role: "system", Content: strings.TrimSpace(req.SystemPrompt)},
			{Role: "user", Content: req.UserPrompt},
		},
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		payload.MaxTokens = req.MaxTokens
	}

	return c.postChat(ctx, profile, payload)
}

// resolveProvider 依据系统设置挑选提供商并补齐缺省的 base/model。
// Key 未配置时直接返回 ErrAIAPIKeyMissing，调用方据此走兜底路径。
func (c *aiChatClient) resolveProvider(settings SystemSettings) (providerProfile, error) {
	profile := providerProfile{
		label:  "OpenAI",
		apiKey: strings.TrimSpace(settings.OpenAIAPIKey),
		base:   strings.TrimSpace(c.openAIBaseURL),
		model:  strings.TrimSpace(c.openAIModel),
	}
	if profile.base == "" {
		profile.base = "https://api.openai.com/v1"
	}
	if profile.model == "" {
		profile.model = c.defaultOpenAIModel
	}

	if normalizeAIProvider(settings.AIProvider) == AIProviderDeepSeek {
		profile = providerProfile{
			label:  "DeepSeek",
			apiKey: strings.TrimSpace(settings.DeepSeekAPIKey),
			base:   strings.TrimSpace(c.deepSeekBaseURL),
			model:  strings.TrimSpace(c.deepSeekModel),
		}
		if profile.base == "" {
			profile.base = "https://api.deepseek.com/v1"
		}
		if profile.model == "" {
			profile.model = c.defaultDeepSeekModel
		}
	}

	if profile.apiKey == "" {
		return providerProfile{}, ErrAIAPIKeyMissing
	}
	return profile, nil
}

// postChat 发出请求并解包首个回答。响应体限读 1MB；
// 出错状态优先取接口的 error.message，其次原始响应体。
func (c *aiChatClient) postChat(ctx context.Context, profile providerProfile, payload chatCompletionRequest) (aiChatResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("构造请求失败: %w", err)
	}

	endpoint := profile.base + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("创建 %s 请求失败: %w", profile.label, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+profile.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "stridelog-ai/1.0")

	client := c.http
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("请求 %s 接口失败: %w", profile.label, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("读取 %s 响应失败: %w", profile.label, err)
	}

	var completion chatCompletionResponse
	parseErr := json.Unmarshal(raw, &completion)

	if resp.StatusCode >= http.StatusBadRequest {
		message := strings.TrimSpace(completion.Error.Message)
		if message == "" {
			message = strings.TrimSpace(string(raw))
		}
		if message == "" {
			message = resp.Status
		}
		return aiChatResponse{}, fmt.Errorf("%s 接口返回错误：%s", profile.label, message)
	}
	if parseErr != nil {
		return aiChatResponse{}, fmt.Errorf("解析 %s 响应失败: %w", profile.label, parseErr)
	}
	if len(completion.Choices) == 0 {
		return aiChatResponse{}, fmt.Errorf("%s 接口未返回结果", profile.label)
	}

	return aiChatResponse{
		Content:          strings.TrimSpace(completion.Choices[0].Message.Content),
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
	}, nil
}

// truncateRunes 按字符数截断，避免把多字节字符切坏。
func truncateRunes(input string, limit int) string {
	if limit <= 0 {
		return input
	}
	if utf8.RuneCountInString(input) <= limit {
		return input
	}
	return string([]rune(input)[:limit])
}
