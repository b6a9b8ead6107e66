package domain

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// Comment length limits. The UI composer and the domain layer enforce different maxima.
const (
	MinCommentLength       = 2
	UICommentMaxLength     = 500
	DomainCommentMaxLength = 1000
	MaxMentions            = 10
	MaxAttachmentSize      = 10 << 20
)

var (
	unsafeContentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<script`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)on\w+\s*=`),
	}
	mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_.\-]+)`)

	blockedAttachmentExtensions = []string{".exe", ".bat", ".cmd", ".com", ".scr", ".msi", ".vbs", ".js", ".jar", ".ps1"}
)

// ValidationResult is the structured outcome of a validator.
type ValidationResult struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`

	cause error
}

// validation accumulates errors and warnings.
type validation struct {
	errors   []string
	warnings []string
	cause    error
}

func (v *validation) fail(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

// failWith records a failure tied to a sentinel; the first sentinel wins.
func (v *validation) failWith(cause error, format string, args ...any) {
	if v.cause == nil {
		v.cause = cause
	}
	v.fail(format, args...)
}

func (v *validation) warn(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validation) result() ValidationResult {
	return ValidationResult{
		IsValid:  len(v.errors) == 0,
		Errors:   append([]string{}, v.errors...),
		Warnings: v.warnings,
		cause:    v.cause,
	}
}

// Err translates a failed result into a validation CollaborationError.
func (r ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	err := NewValidationError(strings.Join(r.Errors, "; "))
	if r.cause != nil {
		err.Err = r.cause
		if code := validationCode(r.cause); code != "" {
			err.Code = code
		}
	}
	return err
}

// Cause returns the sentinel behind the first failure that has one.
func (r ValidationResult) Cause() error {
	return r.cause
}

// ValidateComment checks comment content against maxLength, which is
// UICommentMaxLength or DomainCommentMaxLength depending on the call site.
func ValidateComment(content string, maxLength int) ValidationResult {
	var v validation
	trimmed := strings.TrimSpace(content)
	length := utf8.RuneCountInString(trimmed)
	switch {
	case trimmed == "":
		v.fail("Comment cannot be empty")
	case length < MinCommentLength:
		v.fail("Comment must be at least %d characters", MinCommentLength)
	case length > maxLength:
		v.fail("Comment cannot exceed %d characters", maxLength)
	}
	if ContainsUnsafeContent(trimmed) {
		v.fail("Comment contains potentially unsafe content")
	}
	return v.result()
}

// ContainsUnsafeContent reports script tags, javascript: URLs, and inline event handlers.
func ContainsUnsafeContent(content string) bool {
	for _, pattern := range unsafeContentPatterns {
		if pattern.MatchString(content) {
			return true
		}
	}
	return false
}

// DelegationRequest carries everything the delegation validator needs.
type DelegationRequest struct {
	TaskID    string
	Delegator User
	// Assignee is nil when the requested user does not exist.
	Assignee *TeamMember
	Note     string
	Existing []TaskDelegation
}

// ValidateDelegationRequest applies the delegation gating rules.
func ValidateDelegationRequest(req DelegationRequest) ValidationResult {
	var v validation
	if strings.TrimSpace(req.TaskID) == "" {
		v.fail("Task is required")
	}
	if !req.Delegator.Role.CanDelegate {
		v.fail("You do not have permission to delegate tasks")
	}
	if req.Assignee == nil {
		v.fail("Assignee not found")
		return v.result()
	}
	assignee := req.Assignee
	if assignee.ID == req.Delegator.ID {
		v.failWith(ErrSelfDelegation, "You cannot delegate a task to yourself")
	}
	if !assignee.Role.CanReceiveDelegations {
		v.fail("%s cannot receive delegated tasks", assignee.Name)
	}
	if !assignee.IsActive {
		v.failWith(ErrAssigneeInactive, "%s is not an active team member", assignee.Name)
	}

	note := strings.TrimSpace(req.Note)
	if utf8.RuneCountInString(note) > MaxDelegationNoteLength {
		v.failWith(ErrNoteTooLong, "Note cannot exceed %d characters", MaxDelegationNoteLength)
	} else if note == "" {
		v.warn("Consider adding a note to give the assignee context")
	}

	if current, ok := ActiveDelegationForTask(req.Existing, req.TaskID); ok {
		if current.AssigneeID == assignee.ID {
			v.failWith(ErrDuplicateDelegation, "Task is already delegated to %s", assignee.Name)
		} else {
			v.warn("Task is already delegated to another user; the existing delegation will be revoked")
		}
	}
	return v.result()
}

// ExtractMentions returns the lowercase @handles in content, in order of appearance.
func ExtractMentions(content string) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.ToLower(strings.TrimRight(m[1], ".-")))
	}
	return out
}

// ValidateMentions resolves @handles against members and returns the mentioned user ids.
func ValidateMentions(content string, members []TeamMember, authorID string) (ValidationResult, []string) {
	var v validation
	handles := ExtractMentions(content)
	byHandle := make(map[string]TeamMember, len(members))
	for _, m := range members {
		byHandle[m.MentionHandle()] = m
	}

	ids := make([]string, 0, len(handles))
	duplicate := false
	selfMention := false
	for _, handle := range handles {
		member, ok := byHandle[handle]
		if !ok {
			v.fail("Unknown user: @%s", handle)
			continue
		}
		if slices.Contains(ids, member.ID) {
			duplicate = true
			continue
		}
		if member.ID == authorID {
			selfMention = true
		}
		ids = append(ids, member.ID)
	}
	if duplicate {
		v.warn("Duplicate mentions were ignored")
	}
	if len(handles) > MaxMentions {
		v.warn("Mentioning more than %d people may be noisy", MaxMentions)
	}
	if selfMention {
		v.warn("You mentioned yourself")
	}
	return v.result(), ids
}

// ValidateAttachment checks an attachment's name, size, and type.
func ValidateAttachment(fileName string, size int64, mimeType string) ValidationResult {
	var v validation
	name := strings.TrimSpace(fileName)
	if name == "" {
		v.fail("File name is required")
	}
	if size <= 0 {
		v.fail("File is empty")
	} else if size > MaxAttachmentSize {
		v.fail("File exceeds the %d MB limit", MaxAttachmentSize>>20)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if slices.Contains(blockedAttachmentExtensions, ext) {
		v.fail("Files of type %s are not allowed", ext)
	}
	if strings.TrimSpace(mimeType) == "" {
		v.warn("Unknown file type")
	}
	return v.result()
}

// CanRevokeDelegation reports whether u may revoke d.
func CanRevokeDelegation(u User, d TaskDelegation) bool {
	return u.ID == d.DelegatorID || u.Role.CanManageTeam
}

// CanCompleteDelegation reports whether u may complete d.
func CanCompleteDelegation(u User, d TaskDelegation) bool {
	return u.ID == d.AssigneeID || u.Role.CanManageTeam
}

// CanComment reports whether u may create comments.
func CanComment(u User) bool {
	return u.IsActive && u.HasPermission(ResourceComment, "create")
}

// CanEditComment reports whether u may edit c.
func CanEditComment(u User, c TaskComment) bool {
	return u.ID == c.AuthorID
}

// CanDeleteComment reports whether u may delete c.
func CanDeleteComment(u User, c TaskComment) bool {
	return u.ID == c.AuthorID || u.Role.CanManageTeam
}

// CanDeleteAttachment reports whether u may delete a.
func CanDeleteAttachment(u User, a TaskAttachment) bool {
	return u.ID == a.UploaderID || u.Role.CanManageTeam
}
