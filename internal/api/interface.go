package api

import (
	"context"

	"github.com/diogo/studychat/internal/models"
	"github.com/diogo/studychat/internal/stream"
)

// ClientInterface is the surface of Client used by the commands and the TUI
type ClientInterface interface {
	SendMessage(ctx context.Context, topicID, text string, progress stream.ProgressFunc) (stream.Result, error)
	ListTopics(ctx context.Context) ([]models.TopicInfo, error)
	CreateTopic(ctx context.Context, name string) (*models.Topic, error)
	GetTopic(ctx context.Context, topicID string) (*models.Topic, error)
	DeleteTopic(ctx context.Context, topicID string) (string, error)
	TriggerIngest(ctx context.Context) (string, error)
	Health(ctx context.Context) (*models.HealthStatus, error)
	ServerURL() string
	Close()
}

var _ ClientInterface = (*Client)(nil)
