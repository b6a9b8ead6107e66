package domain

import (
	"errors"
	"strings"
	"testing"
)

func member(t *testing.T, id, name string, role RoleName) TeamMember {
	t.Helper()
	m, err := NewTeamMember(id, name, "", role)
	if err != nil {
		t.Fatalf("NewTeamMember(%s) error = %v", id, err)
	}
	return m
}

// TestValidateComment verifies behavior for the covered scenario.
func TestValidateComment(t *testing.T) {
	cases := []struct {
		name    string
		content string
		max     int
		valid   bool
		errText string
	}{
		{name: "ok", content: "looks good", max: UICommentMaxLength, valid: true},
		{name: "empty", content: "  \n ", max: UICommentMaxLength, errText: "Comment cannot be empty"},
		{name: "short", content: " x ", max: UICommentMaxLength, errText: "at least 2"},
		{name: "ui limit", content: strings.Repeat("a", UICommentMaxLength+1), max: UICommentMaxLength, errText: "exceed 500"},
		{name: "domain limit allows ui overflow", content: strings.Repeat("a", UICommentMaxLength+1), max: DomainCommentMaxLength, valid: true},
		{name: "script", content: "hi <SCRIPT>x</script>", max: UICommentMaxLength, errText: "unsafe"},
		{name: "javascript url", content: "see javascript:alert(1)", max: UICommentMaxLength, errText: "unsafe"},
		{name: "event handler", content: `<img onerror = "x">`, max: UICommentMaxLength, errText: "unsafe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ValidateComment(tc.content, tc.max)
			if res.IsValid != tc.valid {
				t.Fatalf("ValidateComment() valid = %t, errors = %v", res.IsValid, res.Errors)
			}
			if tc.valid {
				if res.Err() != nil || res.Errors == nil {
					t.Fatalf("expected nil error and non-nil empty errors, got %#v", res)
				}
				return
			}
			if !strings.Contains(strings.Join(res.Errors, "; "), tc.errText) {
				t.Fatalf("expected %q in %v", tc.errText, res.Errors)
			}
			if !IsKind(res.Err(), KindValidation) {
				t.Fatalf("expected validation error, got %v", res.Err())
			}
		})
	}
}

// TestValidateDelegationRequest verifies behavior for the covered scenario.
func TestValidateDelegationRequest(t *testing.T) {
	alice := member(t, "alice", "Alice", RoleManager)
	bob := member(t, "bob", "Bob", RoleMember)
	viewer := member(t, "carol", "Carol", RoleViewer)
	inactive := member(t, "dave", "Dave", RoleMember)
	inactive.IsActive = false
	active := []TaskDelegation{{ID: "d1", TaskID: "T1", DelegatorID: "alice", AssigneeID: "bob", Status: DelegationActive}}

	cases := []struct {
		name     string
		req      DelegationRequest
		valid    bool
		errText  string
		warnText string
		cause    error
	}{
		{name: "ok with note", req: DelegationRequest{TaskID: "T1", Delegator: alice.User, Assignee: &bob, Note: "please"}, valid: true},
		{name: "ok without note warns", req: DelegationRequest{TaskID: "T1", Delegator: alice.User, Assignee: &bob}, valid: true, warnText: "Consider adding a note"},
		{name: "missing task", req: DelegationRequest{Delegator: alice.User, Assignee: &bob, Note: "n"}, errText: "Task is required"},
		{name: "viewer delegator", req: DelegationRequest{TaskID: "T1", Delegator: viewer.User, Assignee: &bob, Note: "n"}, errText: "permission to delegate"},
		{name: "unknown assignee", req: DelegationRequest{TaskID: "T1", Delegator: alice.User, Note: "n"}, errText: "Assignee not found"},
		{name: "self", req: DelegationRequest{TaskID: "T1", Delegator: alice.User, Assignee: &alice, Note: "n"}, errText: "yourself", cause: ErrSelfDelegation},
		{name: "viewer assignee", req: DelegationRequest{TaskID: "T1", Delegator: alice.User, Assignee: &viewer, Note: "n"}, errText: "Carol cannot receive"},
		{name: "inactive", req: DelegationRequest{TaskID: "T1", Delegator: alice.User, Assignee: &inactive, Note: "n"}, errText: "Dave is not an active", cause: ErrAssigneeInactive},
		{name: "long note", req: DelegationRequest{TaskID: "T1", Delegator: alice.User, Assignee: &bob, Note: strings.Repeat("n", MaxDelegationNoteLength+1)}, errText: "Note cannot exceed", cause: ErrNoteTooLong},
		{name: "duplicate", req: DelegationRequest{TaskID: "T1", Delegator: alice.User, Assignee: &bob, Note: "n", Existing: active}, errText: "already delegated to Bob", cause: ErrDuplicateDelegation},
		{name: "supersede warns", req: DelegationRequest{TaskID: "T1", Delegator: alice.User, Assignee: &inactive, Note: "n", Existing: active}, errText: "not an active", warnText: "will be revoked"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ValidateDelegationRequest(tc.req)
			if res.IsValid != tc.valid {
				t.Fatalf("valid = %t, errors = %v", res.IsValid, res.Errors)
			}
			if tc.errText != "" && !strings.Contains(strings.Join(res.Errors, "; "), tc.errText) {
				t.Fatalf("expected error %q in %v", tc.errText, res.Errors)
			}
			if tc.warnText != "" && !strings.Contains(strings.Join(res.Warnings, "; "), tc.warnText) {
				t.Fatalf("expected warning %q in %v", tc.warnText, res.Warnings)
			}
			if tc.cause != nil && !errors.Is(res.Err(), tc.cause) {
				t.Fatalf("Err() = %v, want it to wrap %v", res.Err(), tc.cause)
			}
		})
	}
}

// TestValidateMentions verifies behavior for the covered scenario.
func TestValidateMentions(t *testing.T) {
	members := []TeamMember{
		member(t, "alice", "Alice", RoleManager),
		member(t, "bob", "Bob Smith", RoleMember),
	}
	if got := ExtractMentions("hi @Alice and @bobsmith."); len(got) != 2 || got[0] != "alice" || got[1] != "bobsmith" {
		t.Fatalf("ExtractMentions() = %v", got)
	}

	res, ids := ValidateMentions("@bobsmith @BobSmith please, cc @alice", members, "alice")
	if !res.IsValid || len(ids) != 2 || ids[0] != "bob" || ids[1] != "alice" {
		t.Fatalf("unexpected result %#v ids=%v", res, ids)
	}
	warnings := strings.Join(res.Warnings, "; ")
	if !strings.Contains(warnings, "Duplicate") || !strings.Contains(warnings, "yourself") {
		t.Fatalf("expected duplicate and self warnings, got %v", res.Warnings)
	}

	res, _ = ValidateMentions("ping @nobody", members, "alice")
	if res.IsValid || !strings.Contains(res.Errors[0], "@nobody") {
		t.Fatalf("expected unknown mention rejected, got %#v", res)
	}

	many := strings.Repeat("@alice ", MaxMentions+1)
	res, ids = ValidateMentions(many, members, "bob")
	if !res.IsValid || len(ids) != 1 || !strings.Contains(strings.Join(res.Warnings, "; "), "noisy") {
		t.Fatalf("expected noisy warning, got %#v ids=%v", res, ids)
	}
}

// TestValidateAttachment verifies behavior for the covered scenario.
func TestValidateAttachment(t *testing.T) {
	cases := []struct {
		name  string
		file  string
		size  int64
		mime  string
		valid bool
		warn  bool
	}{
		{name: "ok", file: "notes.txt", size: 10, mime: "text/plain", valid: true},
		{name: "unknown type warns", file: "blob", size: 10, valid: true, warn: true},
		{name: "no name", file: " ", size: 10, mime: "text/plain"},
		{name: "empty", file: "a.txt", size: 0, mime: "text/plain"},
		{name: "too big", file: "a.pdf", size: MaxAttachmentSize + 1, mime: "application/pdf"},
		{name: "at limit", file: "a.pdf", size: MaxAttachmentSize, mime: "application/pdf", valid: true},
		{name: "blocked", file: "SETUP.EXE", size: 10, mime: "application/octet-stream"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ValidateAttachment(tc.file, tc.size, tc.mime)
			if res.IsValid != tc.valid || (len(res.Warnings) > 0) != tc.warn {
				t.Fatalf("ValidateAttachment() = %#v", res)
			}
		})
	}
}

// TestPermissionChecks verifies behavior for the covered scenario.
func TestPermissionChecks(t *testing.T) {
	alice := member(t, "alice", "Alice", RoleManager).User
	bob := member(t, "bob", "Bob", RoleMember).User
	carol := member(t, "carol", "Carol", RoleViewer).User
	d := TaskDelegation{DelegatorID: "bob", AssigneeID: "carol"}
	c := TaskComment{AuthorID: "bob"}
	a := TaskAttachment{UploaderID: "bob"}

	checks := []struct {
		name string
		got  bool
		want bool
	}{
		{name: "delegator revokes", got: CanRevokeDelegation(bob, d), want: true},
		{name: "manager revokes", got: CanRevokeDelegation(alice, d), want: true},
		{name: "assignee cannot revoke", got: CanRevokeDelegation(carol, d), want: false},
		{name: "assignee completes", got: CanCompleteDelegation(carol, d), want: true},
		{name: "delegator cannot complete", got: CanCompleteDelegation(bob, d), want: false},
		{name: "member comments", got: CanComment(bob), want: true},
		{name: "viewer cannot comment", got: CanComment(carol), want: false},
		{name: "author edits", got: CanEditComment(bob, c), want: true},
		{name: "manager cannot edit", got: CanEditComment(alice, c), want: false},
		{name: "manager deletes comment", got: CanDeleteComment(alice, c), want: true},
		{name: "viewer cannot delete comment", got: CanDeleteComment(carol, c), want: false},
		{name: "uploader deletes", got: CanDeleteAttachment(bob, a), want: true},
		{name: "viewer cannot delete attachment", got: CanDeleteAttachment(carol, a), want: false},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Fatalf("%s = %t, want %t", c.name, c.got, c.want)
		}
	}

	inactive := bob
	inactive.IsActive = false
	if CanComment(inactive) {
		t.Fatal("expected inactive users unable to comment")
	}
}
