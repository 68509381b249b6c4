package api

import (
	"context"
	"strings"
	"sync"

	"github.com/diogo/studychat/internal/models"
	"github.com/diogo/studychat/internal/stream"
)

// MockClient is a mock implementation of ClientInterface for testing.
// SendMessage replays StreamBody through the real stream pump.
type MockClient struct {
	mu sync.Mutex

	// Mock return values
	StreamBody   string
	SendErr      error
	Topics       []models.TopicInfo
	ListErr      error
	Topic        *models.Topic
	TopicErr     error
	CreateErr    error
	DeleteMsg    string
	DeleteErr    error
	IngestMsg    string
	IngestErr    error
	HealthStatus *models.HealthStatus
	HealthErr    error
	URL          string

	// Call recorders
	SendCalls    int
	LastTopicID  string
	LastMessage  string
	CreatedNames []string
	DeletedIDs   []string
	CloseCalled  bool
}

var _ ClientInterface = (*MockClient)(nil)

func (m *MockClient) SendMessage(ctx context.Context, topicID, text string, progress stream.ProgressFunc) (stream.Result, error) {
	m.mu.Lock()
	m.SendCalls++
	m.LastTopicID = topicID
	m.LastMessage = text
	body, err := m.StreamBody, m.SendErr
	m.mu.Unlock()

	if err != nil {
		return stream.Result{}, err
	}
	s := stream.NewSession(stream.WithProgress(progress))
	return stream.Consume(ctx, strings.NewReader(body), s), nil
}

func (m *MockClient) ListTopics(ctx context.Context) ([]models.TopicInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Topics, m.ListErr
}

func (m *MockClient) CreateTopic(ctx context.Context, name string) (*models.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreatedNames = append(m.CreatedNames, name)
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if name == "" {
		name = "New Topic"
	}
	id := "new-" + name
	m.Topics = append(m.Topics, models.TopicInfo{ID: id, Name: name, Preview: "New Topic"})
	return &models.Topic{ID: id, Name: name}, nil
}

func (m *MockClient) GetTopic(ctx context.Context, topicID string) (*models.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.TopicErr != nil {
		return nil, m.TopicErr
	}
	if m.Topic != nil {
		return m.Topic, nil
	}
	for _, t := range m.Topics {
		if t.ID == topicID {
			return &models.Topic{ID: t.ID, Name: t.Name}, nil
		}
	}
	return &models.Topic{ID: topicID}, nil
}

func (m *MockClient) DeleteTopic(ctx context.Context, topicID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeletedIDs = append(m.DeletedIDs, topicID)
	return m.DeleteMsg, m.DeleteErr
}

func (m *MockClient) TriggerIngest(ctx context.Context) (string, error) {
	return m.IngestMsg, m.IngestErr
}

func (m *MockClient) Health(ctx context.Context) (*models.HealthStatus, error) {
	return m.HealthStatus, m.HealthErr
}

func (m *MockClient) ServerURL() string {
	if m.URL == "" {
		return models.DefaultServerURL
	}
	return m.URL
}

func (m *MockClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
}

// Calls returns the number of SendMessage calls
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SendCalls
}
