package app

import (
	"context"
	"strings"
	"testing"

	"github.com/hylla/mauflow/internal/domain"
)

func TestAddCommentNotifiesMentionsAndWatchers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.kv.put(KeyEnhancedTasks, `[{"id":"T1","title":"Parser","watchers":["alice","bob","carol"]}]`)

	res, err := env.engine.Comments.Add(as("alice"), AddCommentInput{TaskID: "T1", Content: "@bob can you check this?"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !res.Outcome.Optimistic {
		t.Fatalf("expected optimistic outcome, got %#v", res.Outcome)
	}
	if len(res.Comment.Mentions) != 1 || res.Comment.Mentions[0] != "bob" {
		t.Fatalf("unexpected mentions %#v", res.Comment.Mentions)
	}
	if got := env.engine.Comments.List(ctx, "T1"); len(got) != 1 {
		t.Fatalf("expected comment in memory, got %#v", got)
	}
	if got := env.engine.Store.Comments(ctx); len(got) != 1 {
		t.Fatalf("expected comment persisted, got %#v", got)
	}

	bob := env.engine.Notifications.ListForUser(ctx, "bob", NotificationFilter{})
	if len(bob) != 1 || bob[0].Type != domain.NotificationCommentMention {
		t.Fatalf("expected a single mention for bob, got %#v", bob)
	}
	if want := `Alice mentioned you in a comment on "Parser"`; bob[0].Message != want {
		t.Fatalf("message = %q, want %q", bob[0].Message, want)
	}
	carol := env.engine.Notifications.ListForUser(ctx, "carol", NotificationFilter{})
	if len(carol) != 1 || carol[0].Type != domain.NotificationTaskUpdated {
		t.Fatalf("expected watcher update for carol, got %#v", carol)
	}
	if got := env.engine.Notifications.ListForUser(ctx, "alice", NotificationFilter{}); len(got) != 0 {
		t.Fatalf("expected author not notified, got %#v", got)
	}
}

func TestAddReplyNotifiesParentAuthor(t *testing.T) {
	env := newTestEnv(t)
	parent, err := env.engine.Comments.Add(as("bob"), AddCommentInput{TaskID: "T1", Content: "first pass done"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := env.engine.Comments.Add(as("alice"), AddCommentInput{TaskID: "T1", Content: "thanks!", ParentID: parent.Comment.ID}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	notes := env.engine.Notifications.ListForUser(context.Background(), "bob", NotificationFilter{})
	if len(notes) != 1 || notes[0].Type != domain.NotificationCommentReply {
		t.Fatalf("expected reply notification, got %#v", notes)
	}

	_, err = env.engine.Comments.Add(as("alice"), AddCommentInput{TaskID: "T2", Content: "wrong task", ParentID: parent.Comment.ID})
	wantKind(t, err, domain.KindNotFound)
}

func TestAddCommentValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name    string
		actor   string
		content string
		kind    domain.ErrorKind
	}{
		{name: "empty", actor: "alice", content: "   ", kind: domain.KindValidation},
		{name: "too short", actor: "alice", content: "x", kind: domain.KindValidation},
		{name: "over domain limit", actor: "alice", content: strings.Repeat("a", domain.DomainCommentMaxLength+1), kind: domain.KindValidation},
		{name: "script", actor: "alice", content: "hi <script>alert(1)</script>", kind: domain.KindValidation},
		{name: "unknown mention", actor: "alice", content: "ping @nobody", kind: domain.KindValidation},
		{name: "viewer", actor: "carol", content: "looks good", kind: domain.KindPermissionDenied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.Comments.Add(as(tc.actor), AddCommentInput{TaskID: "T1", Content: tc.content})
			wantKind(t, err, tc.kind)
		})
	}
	if got := env.engine.Store.Comments(context.Background()); len(got) != 0 {
		t.Fatalf("expected nothing persisted, got %#v", got)
	}

	// Between the two limits the domain path accepts what the composer would reject.
	long := strings.Repeat("b", domain.UICommentMaxLength+1)
	if domain.ValidateComment(long, domain.UICommentMaxLength).IsValid {
		t.Fatal("expected composer limit to reject")
	}
	if _, err := env.engine.Comments.Add(as("alice"), AddCommentInput{TaskID: "T1", Content: long}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
}

func TestAddCommentSelfMentionWarns(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.engine.Comments.Add(as("alice"), AddCommentInput{TaskID: "T1", Content: "note to @alice"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected self-mention warning")
	}
	if got := env.engine.Notifications.Stored(context.Background()); len(got) != 0 {
		t.Fatalf("expected no self notification, got %#v", got)
	}
}

func TestAddCommentRollsBackAfterExhaustedRetries(t *testing.T) {
	env := newTestEnv(t)
	env.kv.setFailing(KeyComments, true)

	_, err := env.engine.Comments.Add(as("alice"), AddCommentInput{TaskID: "T1", Content: "will not stick"})
	wantKind(t, err, domain.KindStorage)
	if got := env.kv.sets(KeyComments); got != 4 {
		t.Fatalf("expected 4 write attempts, got %d", got)
	}
	if got := env.engine.Comments.List(context.Background(), "T1"); len(got) != 0 {
		t.Fatalf("expected in-memory rollback, got %#v", got)
	}
	if len(*env.waits) != 3 {
		t.Fatalf("expected 3 retry waits, got %v", *env.waits)
	}
}

func TestEditAndDeleteComment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.engine.Comments.Add(as("bob"), AddCommentInput{TaskID: "T1", Content: "draft"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	_, err = env.engine.Comments.Edit(as("alice"), res.Comment.ID, "hijack")
	wantKind(t, err, domain.KindPermissionDenied)

	edited, err := env.engine.Comments.Edit(as("bob"), res.Comment.ID, "final, cc @alice")
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if !edited.Comment.IsEdited || edited.Comment.Content != "final, cc @alice" {
		t.Fatalf("unexpected edited comment %#v", edited.Comment)
	}
	if got := env.engine.Notifications.ListForUser(ctx, "alice", NotificationFilter{}); len(got) != 1 {
		t.Fatalf("expected new mention notification for alice, got %#v", got)
	}

	_, err = env.engine.Comments.Delete(as("carol"), res.Comment.ID)
	wantKind(t, err, domain.KindPermissionDenied)
	// alice manages the team, so she may delete bob's comment.
	if _, err := env.engine.Comments.Delete(as("alice"), res.Comment.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := env.engine.Store.Comments(ctx); len(got) != 0 {
		t.Fatalf("expected comment removed from storage, got %#v", got)
	}
	_, err = env.engine.Comments.Delete(as("alice"), res.Comment.ID)
	wantKind(t, err, domain.KindNotFound)
}

func TestAttachments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.engine.Attachments.Add(as("alice"), AddAttachmentInput{TaskID: "T1", FileName: "setup.exe", FileSize: 10, MimeType: "application/octet-stream"})
	wantKind(t, err, domain.KindValidation)
	_, _, err = env.engine.Attachments.Add(as("alice"), AddAttachmentInput{TaskID: "T1", FileName: "big.pdf", FileSize: domain.MaxAttachmentSize + 1, MimeType: "application/pdf"})
	wantKind(t, err, domain.KindValidation)
	_, _, err = env.engine.Attachments.Add(as("carol"), AddAttachmentInput{TaskID: "T1", FileName: "notes.txt", FileSize: 10, MimeType: "text/plain"})
	wantKind(t, err, domain.KindPermissionDenied)

	a, warnings, err := env.engine.Attachments.Add(as("bob"), AddAttachmentInput{TaskID: "T1", FileName: "notes.txt", FileSize: 10, MimeType: "text/plain"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if len(warnings) != 0 || a.UploaderID != "bob" || a.MimeType != "text/plain" {
		t.Fatalf("unexpected attachment %#v warnings=%v", a, warnings)
	}
	if got := env.engine.Attachments.List(ctx, "T1"); len(got) != 1 {
		t.Fatalf("expected one attachment, got %#v", got)
	}

	wantKind(t, env.engine.Attachments.Delete(as("carol"), a.ID), domain.KindPermissionDenied)
	if err := env.engine.Attachments.Delete(as("bob"), a.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := env.engine.Store.Attachments(ctx); len(got) != 0 {
		t.Fatalf("expected attachment removed, got %#v", got)
	}
}
