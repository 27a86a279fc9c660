package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"quizzy-service/internal/domain"
)

// Config points at a RapidAPI-style question endpoint returning a JSON array.
type Config struct {
	URL     string
	APIKey  string
	APIHost string
	Timeout time.Duration
}

// QuestionClient downloads the full question set in one request.
type QuestionClient struct {
	cfg    Config
	client *http.Client
}

func NewQuestionClient(cfg Config, client *http.Client) *QuestionClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &QuestionClient{cfg: cfg, client: client}
}

func (c *QuestionClient) FetchQuestions(ctx context.Context) ([]domain.Question, error) {
	if c.cfg.URL == "" {
		return nil, errors.New("question provider url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-rapidapi-key", c.cfg.APIKey)
	}
	if c.cfg.APIHost != "" {
		req.Header.Set("x-rapidapi-host", c.cfg.APIHost)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("fetch questions: status %d: %s", resp.StatusCode, snippet)
	}

	var questions []domain.Question
	if err := json.NewDecoder(resp.Body).Decode(&questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return questions, nil
}
