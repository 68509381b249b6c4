package api

import (
	"context"
	"strings"

	http "github.com/bogdanfinn/fhttp"

	"github.com/diogo/studychat/internal/models"
)

type newTopicRequest struct {
	Name *string `json:"name,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// ListTopics returns the topic summaries known to the server
func (c *Client) ListTopics(ctx context.Context) ([]models.TopicInfo, error) {
	var topics []models.TopicInfo
	if err := c.doJSON(ctx, http.MethodGet, models.PathTopics, "list topics", nil, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

// CreateTopic creates a topic. An empty name lets the server pick one.
func (c *Client) CreateTopic(ctx context.Context, name string) (*models.Topic, error) {
	req := newTopicRequest{}
	if name = strings.TrimSpace(name); name != "" {
		req.Name = &name
	}

	var topic models.Topic
	if err := c.doJSON(ctx, http.MethodPost, models.PathTopics, "create topic", req, &topic); err != nil {
		return nil, err
	}
	return &topic, nil
}

// GetTopic fetches a topic with its full transcript
func (c *Client) GetTopic(ctx context.Context, topicID string) (*models.Topic, error) {
	var topic models.Topic
	if err := c.doJSON(ctx, http.MethodGet, models.TopicPath(topicID), "get topic", nil, &topic); err != nil {
		return nil, err
	}
	return &topic, nil
}

// DeleteTopic deletes a topic and returns the server's confirmation
func (c *Client) DeleteTopic(ctx context.Context, topicID string) (string, error) {
	var resp messageResponse
	if err := c.doJSON(ctx, http.MethodDelete, models.TopicPath(topicID), "delete topic", nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// TriggerIngest starts document ingestion on the server. The server answers
// 202 and indexes in the background.
func (c *Client) TriggerIngest(ctx context.Context) (string, error) {
	var resp messageResponse
	if err := c.doJSON(ctx, http.MethodPost, models.PathIngest, "trigger ingest", struct{}{}, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Health reports the server status
func (c *Client) Health(ctx context.Context) (*models.HealthStatus, error) {
	var status models.HealthStatus
	if err := c.doJSON(ctx, http.MethodGet, models.PathHealth, "health check", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
