package domain

import (
	"errors"
	"testing"
	"time"
)

// TestNewCommentNormalizes verifies behavior for the covered scenario.
func TestNewCommentNormalizes(t *testing.T) {
	c, err := NewComment(CommentInput{
		ID:       " c1 ",
		TaskID:   " T1 ",
		AuthorID: "alice",
		Content:  "  **done** ",
		Mentions: []string{"bob", " bob ", "", "carol"},
		ParentID: " ",
	}, testNow)
	if err != nil {
		t.Fatalf("NewComment() error = %v", err)
	}
	if c.ID != "c1" || c.TaskID != "T1" || c.Content != "**done**" || c.ParentID != "" {
		t.Fatalf("unexpected comment %#v", c)
	}
	if len(c.Mentions) != 2 || c.Mentions[0] != "bob" || c.Mentions[1] != "carol" {
		t.Fatalf("expected de-duplicated mentions, got %v", c.Mentions)
	}
	if c.IsEdited || !c.CreatedAt.Equal(c.UpdatedAt) {
		t.Fatalf("expected fresh comment, got %#v", c)
	}

	for _, in := range []CommentInput{
		{TaskID: "T1", AuthorID: "a", Content: "x"},
		{ID: "c", AuthorID: "a", Content: "x"},
		{ID: "c", TaskID: "T1", AuthorID: "a", Content: "  "},
	} {
		if _, err := NewComment(in, testNow); err == nil {
			t.Fatalf("expected NewComment(%#v) to fail", in)
		}
	}
}

// TestCommentEdit verifies behavior for the covered scenario.
func TestCommentEdit(t *testing.T) {
	c, _ := NewComment(CommentInput{ID: "c1", TaskID: "T1", AuthorID: "alice", Content: "draft"}, testNow)
	later := testNow.Add(time.Minute)
	if err := c.Edit(" final ", []string{"bob"}, later); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if c.Content != "final" || !c.IsEdited || !c.UpdatedAt.Equal(later) || !c.CreatedAt.Equal(testNow) {
		t.Fatalf("unexpected edited comment %#v", c)
	}
	if err := c.Edit(" ", nil, later); !errors.Is(err, ErrInvalidCommentBody) {
		t.Fatalf("expected ErrInvalidCommentBody, got %v", err)
	}
}

// TestNewAttachment verifies behavior for the covered scenario.
func TestNewAttachment(t *testing.T) {
	a, err := NewAttachment(AttachmentInput{
		ID:         "a1",
		TaskID:     "T1",
		UploaderID: "bob",
		FileName:   "/tmp/reports/Q1.PDF",
		FileSize:   2048,
		MimeType:   " Application/PDF ",
	}, testNow)
	if err != nil {
		t.Fatalf("NewAttachment() error = %v", err)
	}
	if a.FileName != "Q1.PDF" || a.MimeType != "application/pdf" {
		t.Fatalf("unexpected attachment %#v", a)
	}
	b, err := NewAttachment(AttachmentInput{ID: "a2", TaskID: "T1", UploaderID: "bob", FileName: "blob"}, testNow)
	if err != nil || b.MimeType != "application/octet-stream" {
		t.Fatalf("expected default mime type, got %#v err=%v", b, err)
	}
	if _, err := NewAttachment(AttachmentInput{ID: "a3", TaskID: "T1", UploaderID: "bob", FileName: " "}, testNow); !errors.Is(err, ErrInvalidAttachment) {
		t.Fatalf("expected ErrInvalidAttachment, got %v", err)
	}
}
