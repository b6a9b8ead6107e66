package app

import (
	"context"
	"strings"
)

// TaskRef is the slice of a UI task record the engine reads: its title and watchers.
type TaskRef struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Watchers []string `json:"watchers,omitempty"`
}

// taskTitle returns the stored title for taskID, falling back to fallback and then the id.
func (s *Store) taskTitle(ctx context.Context, taskID, fallback string) string {
	if fallback = strings.TrimSpace(fallback); fallback != "" {
		return fallback
	}
	for _, t := range s.Tasks(ctx) {
		if t.ID == taskID && strings.TrimSpace(t.Title) != "" {
			return t.Title
		}
	}
	return taskID
}

// taskWatchers returns the stored watcher ids for taskID.
func (s *Store) taskWatchers(ctx context.Context, taskID string) []string {
	for _, t := range s.Tasks(ctx) {
		if t.ID == taskID {
			return append([]string(nil), t.Watchers...)
		}
	}
	return nil
}
