// Package models contains data types and constants for the study assistant API.
package models

import (
	"fmt"
	"net/url"
)

// Endpoint paths, relative to the configured server URL
const (
	PathHealth   = "/api/health"
	PathIngest   = "/api/ingest"
	PathTopics   = "/api/topics"
	pathTopic    = "/api/topics/%s"
	pathMessages = "/api/topics/%s/messages"
)

// Content types
const (
	ContentTypeJSON        = "application/json"
	ContentTypeEventStream = "text/event-stream"
)

// DefaultServerURL is used when no server is configured
const DefaultServerURL = "http://localhost:8000"

// TopicPath returns the path of a single topic
func TopicPath(topicID string) string {
	return fmt.Sprintf(pathTopic, url.PathEscape(topicID))
}

// MessagesPath returns the streaming message path of a topic
func MessagesPath(topicID string) string {
	return fmt.Sprintf(pathMessages, url.PathEscape(topicID))
}

// DefaultHeaders returns the default headers for JSON requests
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Accept":          ContentTypeJSON,
		"Accept-Language": "en-US,en;q=0.9",
		"User-Agent":      "studychat/0.1",
	}
}

// StreamHeaders returns the headers for the streaming message request
func StreamHeaders() map[string]string {
	return map[string]string{
		"Content-Type":  ContentTypeJSON,
		"Accept":        ContentTypeEventStream,
		"Cache-Control": "no-cache",
		"User-Agent":    "studychat/0.1",
	}
}
