package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/diogo/studychat/internal/errors"
	"github.com/diogo/studychat/internal/models"
)

func TestListTopics(t *testing.T) {
	mock := NewMockHttpClient(`[{"id":"a1","name":"Biology","preview":"What is a cell?"},{"id":"b2","name":"Chemistry","preview":"New Topic"}]`, 200)
	client := newStreamClient(t, mock)

	topics, err := client.ListTopics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.TopicInfo{
		{ID: "a1", Name: "Biology", Preview: "What is a cell?"},
		{ID: "b2", Name: "Chemistry", Preview: "New Topic"},
	}, topics)
	assert.Equal(t, models.DefaultServerURL+"/api/topics", mock.LastRequest().URL)
}

func TestCreateTopic(t *testing.T) {
	tests := []struct {
		name     string
		topic    string
		wantBody string
	}{
		{"named", "Physics", `{"name":"Physics"}`},
		{"server picks name", "  ", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockHttpClient(`{"id":"p1","name":"Physics","messages":[]}`, 201)
			client := newStreamClient(t, mock)

			topic, err := client.CreateTopic(context.Background(), tt.topic)
			require.NoError(t, err)
			assert.Equal(t, "p1", topic.ID)
			assert.Empty(t, topic.Messages)

			req := mock.LastRequest()
			assert.Equal(t, "POST", req.Method)
			assert.JSONEq(t, tt.wantBody, req.Body)
			assert.Equal(t, models.ContentTypeJSON, req.Header.Get("Content-Type"))
		})
	}
}

func TestGetTopic(t *testing.T) {
	mock := NewMockHttpClient(`{"id":"a1","name":"Biology","messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"Hello"}]}`, 200)
	client := newStreamClient(t, mock)

	topic, err := client.GetTopic(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, &models.Topic{
		ID:   "a1",
		Name: "Biology",
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "hi"},
			{Role: models.RoleAssistant, Content: "Hello"},
		},
	}, topic)
}

func TestGetTopicNotFound(t *testing.T) {
	client := newStreamClient(t, NewMockHttpClient(`{"detail":"Topic not found."}`, 404))

	_, err := client.GetTopic(context.Background(), "zz")
	assert.True(t, apierrors.IsNotFound(err))
	assert.Equal(t, "Server returned 404: Topic not found.", apierrors.UserMessage(err))
}

func TestDeleteTopic(t *testing.T) {
	mock := NewMockHttpClient(`{"message":"Topic a1 deleted successfully."}`, 200)
	client := newStreamClient(t, mock)

	msg, err := client.DeleteTopic(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "Topic a1 deleted successfully.", msg)
	assert.Equal(t, "DELETE", mock.LastRequest().Method)
	assert.Equal(t, models.DefaultServerURL+"/api/topics/a1", mock.LastRequest().URL)
}

func TestTriggerIngest(t *testing.T) {
	mock := NewMockHttpClient(`{"message":"indexing started in background"}`, 202)
	client := newStreamClient(t, mock)

	msg, err := client.TriggerIngest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "indexing started in background", msg)
	assert.Equal(t, "POST", mock.LastRequest().Method)
	assert.Equal(t, models.DefaultServerURL+"/api/ingest", mock.LastRequest().URL)
}

func TestTriggerIngestFailure(t *testing.T) {
	client := newStreamClient(t, NewMockHttpClient(`{"detail":"Ingestion trigger failed: graphrag not found"}`, 500))

	_, err := client.TriggerIngest(context.Background())
	assert.Equal(t, 500, apierrors.GetHTTPStatus(err))
	assert.Contains(t, apierrors.UserMessage(err), "graphrag not found")
}

func TestHealth(t *testing.T) {
	client := newStreamClient(t, NewMockHttpClient(`{"status":"ok","processor":"graphrag_local_search","rag_status":"initialized"}`, 200))

	status, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, status.OK())
	assert.Equal(t, "initialized", status.RAGStatus)
}

func TestMockClientReplaysStream(t *testing.T) {
	mock := &MockClient{StreamBody: helloStream}

	var progress []string
	r, err := mock.SendMessage(context.Background(), "t1", "hi", func(s string) { progress = append(progress, s) })
	require.NoError(t, err)
	assert.Equal(t, "Hello", r.Content)
	assert.Equal(t, []string{"Hel", "Hello"}, progress)
	assert.Equal(t, 1, mock.Calls())
	assert.Equal(t, "hi", mock.LastMessage)
}
