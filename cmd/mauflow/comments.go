package main

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hylla/mauflow/internal/app"
	"github.com/hylla/mauflow/internal/domain"
)

// composerCheck applies the interactive composer limit before the engine sees the text.
func composerCheck(content string) error {
	res := domain.ValidateComment(content, domain.UICommentMaxLength)
	if res.IsValid {
		return nil
	}
	return domain.NewValidationError(strings.Join(res.Errors, "; "))
}

func printWarnings(cmd *cobra.Command, warnings []string) {
	for _, w := range warnings {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", w)
	}
}

func (c *cli) commentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comment",
		Short: "Discuss tasks",
	}

	var parent, title string
	addCmd := &cobra.Command{
		Use:   "add <task-id> <text>",
		Short: "Comment on a task; @handles notify mentioned members",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := composerCheck(args[1]); err != nil {
				return describeError(err)
			}
			return c.withSession(cmd, "comment add", func(ctx context.Context, s *session) error {
				res, err := s.engine.Comments.Add(ctx, app.AddCommentInput{
					TaskID:    args[0],
					Content:   args[1],
					ParentID:  parent,
					TaskTitle: title,
				})
				if err != nil {
					return err
				}
				printWarnings(cmd, res.Warnings)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "commented %s\n", res.Comment.ID)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&parent, "reply-to", "", "parent comment id")
	addCmd.Flags().StringVar(&title, "title", "", "task title used in notification text")

	editCmd := &cobra.Command{
		Use:   "edit <comment-id> <text>",
		Short: "Edit your comment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := composerCheck(args[1]); err != nil {
				return describeError(err)
			}
			return c.withSession(cmd, "comment edit", func(ctx context.Context, s *session) error {
				res, err := s.engine.Comments.Edit(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				printWarnings(cmd, res.Warnings)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "edited %s\n", res.Comment.ID)
				return nil
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <comment-id>",
		Short: "Delete a comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, "comment delete", func(ctx context.Context, s *session) error {
				_, err := s.engine.Comments.Delete(ctx, args[0])
				return err
			})
		},
	}

	var asJSON bool
	listCmd := &cobra.Command{
		Use:   "list <task-id>",
		Short: "List a task's comments, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, "comment list", func(ctx context.Context, s *session) error {
				list := s.engine.Comments.List(ctx, args[0])
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), list)
				}
				renderComments(cmd.OutOrStdout(), list, func(id string) string {
					return s.engine.Directory.DisplayName(ctx, id)
				})
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	cmd.AddCommand(addCmd, editCmd, deleteCmd, listCmd)
	return cmd
}

func (c *cli) attachCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Manage task attachments",
	}

	var (
		size     int64
		mimeType string
		url      string
	)
	addCmd := &cobra.Command{
		Use:   "add <task-id> <file-name>",
		Short: "Record an attachment on a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, "attach add", func(ctx context.Context, s *session) error {
				mt := strings.TrimSpace(mimeType)
				if mt == "" {
					mt, _, _ = strings.Cut(mime.TypeByExtension(filepath.Ext(args[1])), ";")
				}
				a, warnings, err := s.engine.Attachments.Add(ctx, app.AddAttachmentInput{
					TaskID:   args[0],
					FileName: args[1],
					FileSize: size,
					MimeType: mt,
					URL:      url,
				})
				if err != nil {
					return err
				}
				printWarnings(cmd, warnings)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "attached %s\n", a.ID)
				return nil
			})
		},
	}
	addCmd.Flags().Int64Var(&size, "size", 0, "file size in bytes")
	addCmd.Flags().StringVar(&mimeType, "mime", "", "MIME type (guessed from the extension when empty)")
	addCmd.Flags().StringVar(&url, "url", "", "where the file can be fetched")

	deleteCmd := &cobra.Command{
		Use:   "delete <attachment-id>",
		Short: "Delete an attachment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, "attach delete", func(ctx context.Context, s *session) error {
				return s.engine.Attachments.Delete(ctx, args[0])
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list <task-id>",
		Short: "List a task's attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, "attach list", func(ctx context.Context, s *session) error {
				renderAttachments(cmd.OutOrStdout(), s.engine.Attachments.List(ctx, args[0]))
				return nil
			})
		},
	}

	cmd.AddCommand(addCmd, deleteCmd, listCmd)
	return cmd
}
