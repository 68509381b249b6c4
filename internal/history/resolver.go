// Package history resolves topic references and exports topic transcripts.
package history

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/diogo/studychat/internal/models"
)

// TopicLister lists the topics known to the server
type TopicLister interface {
	ListTopics(ctx context.Context) ([]models.TopicInfo, error)
}

// Resolver resolves user-friendly references to topics
type Resolver struct {
	lister TopicLister
}

// NewResolver creates a new topic resolver
func NewResolver(lister TopicLister) *Resolver {
	return &Resolver{lister: lister}
}

// Resolve converts a user-friendly reference to a topic.
//
// Supported references, against the listing order (by name):
//   - "@first", "@last"
//   - "1", "2", "3" - by index (1-based)
//   - an exact topic id
//   - a name, or a unique case-insensitive substring of one
func (r *Resolver) Resolve(ctx context.Context, ref string) (models.TopicInfo, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.TopicInfo{}, fmt.Errorf("empty reference")
	}

	topics, err := r.lister.ListTopics(ctx)
	if err != nil {
		return models.TopicInfo{}, fmt.Errorf("failed to list topics: %w", err)
	}
	return ResolveIn(topics, ref)
}

// ResolveIn resolves ref against an already fetched listing
func ResolveIn(topics []models.TopicInfo, ref string) (models.TopicInfo, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.TopicInfo{}, fmt.Errorf("empty reference")
	}
	if len(topics) == 0 {
		return models.TopicInfo{}, fmt.Errorf("no topics found")
	}

	switch strings.ToLower(ref) {
	case "@first":
		return topics[0], nil
	case "@last":
		return topics[len(topics)-1], nil
	}

	if index, err := strconv.Atoi(ref); err == nil {
		if index < 1 || index > len(topics) {
			return models.TopicInfo{}, fmt.Errorf("index %d out of range (1-%d)", index, len(topics))
		}
		return topics[index-1], nil
	}

	for _, t := range topics {
		if t.ID == ref {
			return t, nil
		}
	}

	refLower := strings.ToLower(ref)
	var matches []models.TopicInfo
	for _, t := range topics {
		name := strings.ToLower(t.Name)
		if name == refLower {
			return t, nil
		}
		if strings.Contains(name, refLower) {
			matches = append(matches, t)
		}
	}

	switch len(matches) {
	case 0:
		return models.TopicInfo{}, fmt.Errorf("no topic matching '%s'", ref)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = fmt.Sprintf("'%s'", m.Name)
		}
		return models.TopicInfo{}, fmt.Errorf("multiple topics match '%s': %s. Use the ID or be more specific",
			ref, strings.Join(names, ", "))
	}
}

// ListAliases returns information about supported references
func ListAliases() string {
	return `Supported references:
  @first         First topic in the list
  @last          Last topic in the list
  1, 2, 3        By index (1-based, as listed)
  "text"         Search by name
  <id>           Direct topic ID`
}
