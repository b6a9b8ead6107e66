package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// TaskComment stores an author-attributed note attached to a task.
type TaskComment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	Mentions  []string  `json:"mentions,omitempty"`
	ParentID  string    `json:"parentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	IsEdited  bool      `json:"isEdited,omitempty"`
}

// CommentInput holds input values for comment creation.
type CommentInput struct {
	ID       string
	TaskID   string
	AuthorID string
	Content  string
	Mentions []string
	ParentID string
}

// NewComment constructs a normalized comment; content rules live in ValidateComment.
func NewComment(in CommentInput, now time.Time) (TaskComment, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.TaskID = strings.TrimSpace(in.TaskID)
	in.AuthorID = strings.TrimSpace(in.AuthorID)
	if in.ID == "" || in.AuthorID == "" {
		return TaskComment{}, ErrInvalidID
	}
	if in.TaskID == "" {
		return TaskComment{}, ErrInvalidTaskID
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return TaskComment{}, ErrInvalidCommentBody
	}
	ts := now.UTC()
	return TaskComment{
		ID:        in.ID,
		TaskID:    in.TaskID,
		AuthorID:  in.AuthorID,
		Content:   content,
		Mentions:  uniqueNonEmpty(in.Mentions),
		ParentID:  strings.TrimSpace(in.ParentID),
		CreatedAt: ts,
		UpdatedAt: ts,
	}, nil
}

// Edit replaces the comment body.
func (c *TaskComment) Edit(content string, mentions []string, now time.Time) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrInvalidCommentBody
	}
	c.Content = content
	c.Mentions = uniqueNonEmpty(mentions)
	c.UpdatedAt = now.UTC()
	c.IsEdited = true
	return nil
}

// TaskAttachment records a file attached to a task.
type TaskAttachment struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"taskId"`
	UploaderID string    `json:"uploaderId"`
	FileName   string    `json:"fileName"`
	FileSize   int64     `json:"fileSize"`
	MimeType   string    `json:"mimeType"`
	URL        string    `json:"url,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// AttachmentInput holds input values for attachment creation.
type AttachmentInput struct {
	ID         string
	TaskID     string
	UploaderID string
	FileName   string
	FileSize   int64
	MimeType   string
	URL        string
}

// NewAttachment constructs a normalized attachment record.
func NewAttachment(in AttachmentInput, now time.Time) (TaskAttachment, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.TaskID = strings.TrimSpace(in.TaskID)
	in.UploaderID = strings.TrimSpace(in.UploaderID)
	in.FileName = filepath.Base(strings.TrimSpace(in.FileName))
	if in.ID == "" || in.UploaderID == "" {
		return TaskAttachment{}, ErrInvalidID
	}
	if in.TaskID == "" {
		return TaskAttachment{}, ErrInvalidTaskID
	}
	if in.FileName == "" || in.FileName == "." || in.FileSize < 0 {
		return TaskAttachment{}, ErrInvalidAttachment
	}
	mime := strings.TrimSpace(strings.ToLower(in.MimeType))
	if mime == "" {
		mime = "application/octet-stream"
	}
	return TaskAttachment{
		ID:         in.ID,
		TaskID:     in.TaskID,
		UploaderID: in.UploaderID,
		FileName:   in.FileName,
		FileSize:   in.FileSize,
		MimeType:   mime,
		URL:        strings.TrimSpace(in.URL),
		UploadedAt: now.UTC(),
	}, nil
}

// uniqueNonEmpty trims and de-duplicates values while preserving order.
func uniqueNonEmpty(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, raw := range in {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
