package models

// TopicInfo is the summary returned by the topic listing
type TopicInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Preview string `json:"preview"`
}

// Topic is a full topic with its transcript
type Topic struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Messages []Message `json:"messages"`
}

// Info returns the listing summary of the topic. The preview is the first
// user message, else the first assistant message.
func (t *Topic) Info() TopicInfo {
	info := TopicInfo{ID: t.ID, Name: t.Name, Preview: "New Topic"}
	for _, role := range []Role{RoleUser, RoleAssistant} {
		for _, msg := range t.Messages {
			if msg.Role == role && msg.Content != "" {
				info.Preview = truncatePreview(msg.Content)
				return info
			}
		}
	}
	return info
}

// HealthStatus is the response of the health endpoint
type HealthStatus struct {
	Status    string `json:"status"`
	Processor string `json:"processor"`
	RAGStatus string `json:"rag_status"`
}

// OK reports whether the server is up
func (h HealthStatus) OK() bool {
	return h.Status == "ok"
}

func truncatePreview(s string) string {
	r := []rune(s)
	if len(r) <= 50 {
		return s
	}
	return string(r[:50]) + "..."
}
