package app

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/hylla/mauflow/internal/clock"
	"github.com/hylla/mauflow/internal/domain"
)

// AddCommentInput holds input values for comment creation.
type AddCommentInput struct {
	TaskID   string
	Content  string
	ParentID string
	// TaskTitle overrides the stored task title in notification text.
	TaskTitle string
}

// CommentResult is a persisted comment plus any validator warnings.
type CommentResult struct {
	Comment  domain.TaskComment
	Warnings []string
	Outcome  MutationOutcome
}

// CommentService manages task comments through the optimistic coordinator.
type CommentService struct {
	store         *Store
	dir           *Directory
	notifications *NotificationService
	coord         *Coordinator
	idGen         IDGenerator
	clock         clock.Clock
	logger        *log.Logger
	state         *OptimisticState[[]domain.TaskComment]
}

// NewCommentService constructs a comment service with an empty in-memory mirror; call Reload
// to populate it from storage.
func NewCommentService(store *Store, dir *Directory, notifications *NotificationService, coord *Coordinator, idGen IDGenerator, c clock.Clock, logger *log.Logger) *CommentService {
	return &CommentService{
		store:         store,
		dir:           dir,
		notifications: notifications,
		coord:         coord,
		idGen:         idGen,
		clock:         c,
		logger:        loggerOrDiscard(logger),
		state:         NewOptimisticState([]domain.TaskComment{}),
	}
}

// Reload replaces the in-memory mirror with the stored comments.
func (s *CommentService) Reload(ctx context.Context) {
	s.state.Set(s.store.Comments(ctx))
}

// List returns the comments for a task, oldest first.
func (s *CommentService) List(ctx context.Context, taskID string) []domain.TaskComment {
	out := make([]domain.TaskComment, 0)
	for _, c := range s.state.Get() {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.TaskComment) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

// Get returns one comment from the in-memory mirror.
func (s *CommentService) Get(_ context.Context, commentID string) (domain.TaskComment, bool) {
	for _, c := range s.state.Get() {
		if c.ID == commentID {
			return c, true
		}
	}
	return domain.TaskComment{}, false
}

// Add validates and stores a comment, then notifies mentioned users, the parent author, and
// task watchers.
func (s *CommentService) Add(ctx context.Context, in AddCommentInput) (CommentResult, error) {
	actor, err := s.dir.CurrentUser(ctx)
	if err != nil {
		return CommentResult{}, err
	}
	if !domain.CanComment(actor) {
		return CommentResult{}, permissionDenied("you cannot comment on tasks")
	}
	check := domain.ValidateComment(in.Content, domain.DomainCommentMaxLength)
	if err := check.Err(); err != nil {
		return CommentResult{}, err
	}
	mentions, mentionIDs := domain.ValidateMentions(in.Content, s.dir.Members(ctx), actor.ID)
	if err := mentions.Err(); err != nil {
		return CommentResult{}, err
	}
	var parent domain.TaskComment
	if parentID := strings.TrimSpace(in.ParentID); parentID != "" {
		p, ok := s.Get(ctx, parentID)
		if !ok || p.TaskID != strings.TrimSpace(in.TaskID) {
			return CommentResult{}, domain.NewCollaborationError(domain.KindNotFound, fmt.Sprintf("parent comment %q not found", parentID), domain.ErrNotFound)
		}
		parent = p
	}

	comment, err := domain.NewComment(domain.CommentInput{
		ID:       s.idGen(),
		TaskID:   in.TaskID,
		AuthorID: actor.ID,
		Content:  in.Content,
		Mentions: mentionIDs,
		ParentID: in.ParentID,
	}, s.clock.Now())
	if err != nil {
		return CommentResult{}, domain.ClassifyError(err)
	}

	outcome, err := RunMutation(ctx, s.coord, s.state, Mutation[[]domain.TaskComment]{
		Type:      OperationAdd,
		TargetIDs: []string{comment.ID},
		Payload:   comment,
		Apply: func(current []domain.TaskComment) []domain.TaskComment {
			return append(slices.Clone(current), comment)
		},
		Persist: func(ctx context.Context) error {
			return s.store.UpdateComments(ctx, func(stored []domain.TaskComment) ([]domain.TaskComment, error) {
				return append(stored, comment), nil
			})
		},
	})
	if err != nil {
		return CommentResult{}, err
	}

	s.notifyAdded(ctx, actor, comment, parent, in.TaskTitle)
	warnings := append(slices.Clone(check.Warnings), mentions.Warnings...)
	return CommentResult{Comment: comment, Warnings: warnings, Outcome: outcome}, nil
}

// notifyAdded fans out comment notifications. Failures are logged and swallowed.
func (s *CommentService) notifyAdded(ctx context.Context, actor domain.User, comment domain.TaskComment, parent domain.TaskComment, titleOverride string) {
	title := s.store.taskTitle(ctx, comment.TaskID, titleOverride)
	base := domain.NotificationInput{
		SenderID:      actor.ID,
		ActorName:     actor.Name,
		ResourceID:    comment.TaskID,
		ResourceType:  domain.ResourceComment,
		ResourceTitle: title,
		Metadata:      map[string]string{"commentId": comment.ID},
	}
	notified := map[string]struct{}{actor.ID: {}}

	mention := base
	mention.Type = domain.NotificationCommentMention
	if _, err := s.notifications.FanOut(ctx, mention, comment.Mentions); err != nil {
		s.logger.Warn("mention notifications failed", "comment_id", comment.ID, "err", err)
	}
	for _, id := range comment.Mentions {
		notified[id] = struct{}{}
	}

	if parent.ID != "" {
		if _, seen := notified[parent.AuthorID]; !seen {
			reply := base
			reply.Type = domain.NotificationCommentReply
			reply.RecipientID = parent.AuthorID
			if _, _, err := s.notifications.Create(ctx, reply); err != nil {
				s.logger.Warn("reply notification failed", "comment_id", comment.ID, "err", err)
			}
			notified[parent.AuthorID] = struct{}{}
		}
	}

	watchers := make([]string, 0)
	for _, id := range s.store.taskWatchers(ctx, comment.TaskID) {
		if _, seen := notified[id]; !seen {
			watchers = append(watchers, id)
		}
	}
	if len(watchers) > 0 {
		updated := base
		updated.Type = domain.NotificationTaskUpdated
		updated.ResourceType = domain.ResourceTask
		updated.Extra = "new comment added"
		if _, err := s.notifications.FanOut(ctx, updated, watchers); err != nil {
			s.logger.Warn("watcher notifications failed", "task_id", comment.TaskID, "err", err)
		}
	}
}

// Edit replaces a comment's content on behalf of its author.
func (s *CommentService) Edit(ctx context.Context, commentID, content string) (CommentResult, error) {
	actor, err := s.dir.CurrentUser(ctx)
	if err != nil {
		return CommentResult{}, err
	}
	existing, ok := s.Get(ctx, commentID)
	if !ok {
		return CommentResult{}, domain.NewCollaborationError(domain.KindNotFound, fmt.Sprintf("comment %q not found", commentID), domain.ErrNotFound)
	}
	if !domain.CanEditComment(actor, existing) {
		return CommentResult{}, permissionDenied("only the author can edit this comment")
	}
	check := domain.ValidateComment(content, domain.DomainCommentMaxLength)
	if err := check.Err(); err != nil {
		return CommentResult{}, err
	}
	mentions, mentionIDs := domain.ValidateMentions(content, s.dir.Members(ctx), actor.ID)
	if err := mentions.Err(); err != nil {
		return CommentResult{}, err
	}

	edited := existing
	if err := edited.Edit(content, mentionIDs, s.clock.Now()); err != nil {
		return CommentResult{}, domain.ClassifyError(err)
	}
	replace := func(in []domain.TaskComment) []domain.TaskComment {
		out := slices.Clone(in)
		for i := range out {
			if out[i].ID == edited.ID {
				out[i] = edited
			}
		}
		return out
	}
	outcome, err := RunMutation(ctx, s.coord, s.state, Mutation[[]domain.TaskComment]{
		Type:      OperationEdit,
		TargetIDs: []string{edited.ID},
		Payload:   edited,
		Apply:     replace,
		Persist: func(ctx context.Context) error {
			return s.store.UpdateComments(ctx, func(stored []domain.TaskComment) ([]domain.TaskComment, error) {
				return replace(stored), nil
			})
		},
	})
	if err != nil {
		return CommentResult{}, err
	}

	added := make([]string, 0)
	for _, id := range edited.Mentions {
		if !slices.Contains(existing.Mentions, id) {
			added = append(added, id)
		}
	}
	if len(added) > 0 {
		_, err := s.notifications.FanOut(ctx, domain.NotificationInput{
			Type:          domain.NotificationCommentMention,
			SenderID:      actor.ID,
			ActorName:     actor.Name,
			ResourceID:    edited.TaskID,
			ResourceType:  domain.ResourceComment,
			ResourceTitle: s.store.taskTitle(ctx, edited.TaskID, ""),
			Metadata:      map[string]string{"commentId": edited.ID},
		}, added)
		if err != nil {
			s.logger.Warn("mention notifications failed", "comment_id", edited.ID, "err", err)
		}
	}
	warnings := append(slices.Clone(check.Warnings), mentions.Warnings...)
	return CommentResult{Comment: edited, Warnings: warnings, Outcome: outcome}, nil
}

// Delete removes a comment on behalf of its author or a team manager.
func (s *CommentService) Delete(ctx context.Context, commentID string) (MutationOutcome, error) {
	actor, err := s.dir.CurrentUser(ctx)
	if err != nil {
		return MutationOutcome{}, err
	}
	existing, ok := s.Get(ctx, commentID)
	if !ok {
		return MutationOutcome{}, domain.NewCollaborationError(domain.KindNotFound, fmt.Sprintf("comment %q not found", commentID), domain.ErrNotFound)
	}
	if !domain.CanDeleteComment(actor, existing) {
		return MutationOutcome{}, permissionDenied("only the author or a team manager can delete this comment")
	}
	drop := func(in []domain.TaskComment) []domain.TaskComment {
		return slices.DeleteFunc(slices.Clone(in), func(c domain.TaskComment) bool { return c.ID == commentID })
	}
	return RunMutation(ctx, s.coord, s.state, Mutation[[]domain.TaskComment]{
		Type:      OperationDelete,
		TargetIDs: []string{commentID},
		Payload:   existing,
		Apply:     drop,
		Persist: func(ctx context.Context) error {
			return s.store.UpdateComments(ctx, func(stored []domain.TaskComment) ([]domain.TaskComment, error) {
				return drop(stored), nil
			})
		},
	})
}

// AddAttachmentInput holds input values for attachment creation.
type AddAttachmentInput struct {
	TaskID   string
	FileName string
	FileSize int64
	MimeType string
	URL      string
}

// AttachmentService manages task attachments through the optimistic coordinator.
type AttachmentService struct {
	store  *Store
	dir    *Directory
	coord  *Coordinator
	idGen  IDGenerator
	clock  clock.Clock
	logger *log.Logger
	state  *OptimisticState[[]domain.TaskAttachment]
}

// NewAttachmentService constructs an attachment service with an empty in-memory mirror.
func NewAttachmentService(store *Store, dir *Directory, coord *Coordinator, idGen IDGenerator, c clock.Clock, logger *log.Logger) *AttachmentService {
	return &AttachmentService{
		store:  store,
		dir:    dir,
		coord:  coord,
		idGen:  idGen,
		clock:  c,
		logger: loggerOrDiscard(logger),
		state:  NewOptimisticState([]domain.TaskAttachment{}),
	}
}

// Reload replaces the in-memory mirror with the stored attachments.
func (s *AttachmentService) Reload(ctx context.Context) {
	s.state.Set(s.store.Attachments(ctx))
}

// List returns the attachments for a task, oldest first.
func (s *AttachmentService) List(_ context.Context, taskID string) []domain.TaskAttachment {
	out := make([]domain.TaskAttachment, 0)
	for _, a := range s.state.Get() {
		if a.TaskID == taskID {
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.TaskAttachment) int {
		return a.UploadedAt.Compare(b.UploadedAt)
	})
	return out
}

// Add validates and stores an attachment record.
func (s *AttachmentService) Add(ctx context.Context, in AddAttachmentInput) (domain.TaskAttachment, []string, error) {
	actor, err := s.dir.CurrentUser(ctx)
	if err != nil {
		return domain.TaskAttachment{}, nil, err
	}
	if !actor.HasPermission(domain.ResourceAttachment, "create") {
		return domain.TaskAttachment{}, nil, permissionDenied("you cannot attach files")
	}
	check := domain.ValidateAttachment(in.FileName, in.FileSize, in.MimeType)
	if err := check.Err(); err != nil {
		return domain.TaskAttachment{}, nil, err
	}
	attachment, err := domain.NewAttachment(domain.AttachmentInput{
		ID:         s.idGen(),
		TaskID:     in.TaskID,
		UploaderID: actor.ID,
		FileName:   in.FileName,
		FileSize:   in.FileSize,
		MimeType:   in.MimeType,
		URL:        in.URL,
	}, s.clock.Now())
	if err != nil {
		return domain.TaskAttachment{}, nil, domain.ClassifyError(err)
	}
	_, err = RunMutation(ctx, s.coord, s.state, Mutation[[]domain.TaskAttachment]{
		Type:      OperationAdd,
		TargetIDs: []string{attachment.ID},
		Payload:   attachment,
		Apply: func(current []domain.TaskAttachment) []domain.TaskAttachment {
			return append(slices.Clone(current), attachment)
		},
		Persist: func(ctx context.Context) error {
			return s.store.UpdateAttachments(ctx, func(stored []domain.TaskAttachment) ([]domain.TaskAttachment, error) {
				return append(stored, attachment), nil
			})
		},
	})
	if err != nil {
		return domain.TaskAttachment{}, nil, err
	}
	s.logger.Info("attachment added", "attachment_id", attachment.ID, "task_id", attachment.TaskID, "size", attachment.FileSize)
	return attachment, check.Warnings, nil
}

// Delete removes an attachment on behalf of its uploader or a team manager.
func (s *AttachmentService) Delete(ctx context.Context, attachmentID string) error {
	actor, err := s.dir.CurrentUser(ctx)
	if err != nil {
		return err
	}
	var existing domain.TaskAttachment
	found := false
	for _, a := range s.state.Get() {
		if a.ID == attachmentID {
			existing, found = a, true
			break
		}
	}
	if !found {
		return domain.NewCollaborationError(domain.KindNotFound, fmt.Sprintf("attachment %q not found", attachmentID), domain.ErrNotFound)
	}
	if !domain.CanDeleteAttachment(actor, existing) {
		return permissionDenied("only the uploader or a team manager can delete this attachment")
	}
	drop := func(in []domain.TaskAttachment) []domain.TaskAttachment {
		return slices.DeleteFunc(slices.Clone(in), func(a domain.TaskAttachment) bool { return a.ID == attachmentID })
	}
	_, err = RunMutation(ctx, s.coord, s.state, Mutation[[]domain.TaskAttachment]{
		Type:      OperationDelete,
		TargetIDs: []string{attachmentID},
		Payload:   existing,
		Apply:     drop,
		Persist: func(ctx context.Context) error {
			return s.store.UpdateAttachments(ctx, func(stored []domain.TaskAttachment) ([]domain.TaskAttachment, error) {
				return drop(stored), nil
			})
		},
	})
	return err
}
