package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/output"
	"github.com/joescharf/issuetracker/internal/store"
)

var (
	issueTitle      string
	issueText       string
	issueCreatedBy  string
	issueAssignedTo string
	issueStatusText string
	issueOpen       string
	issueJSON       bool
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Manage a project's issues",
	Long: `Create, list, update and delete issues through a running server.
The server address comes from server.url.`,
}

var issueListCmd = &cobra.Command{
	Use:     "list <project>",
	Aliases: []string{"ls"},
	Short:   "List issues, optionally filtered",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun(cmd, args[0])
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <project> <issue-id>",
	Short: "Show issue details",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(args[0], args[1])
	},
}

var issueAddCmd = &cobra.Command{
	Use:   "add <project>",
	Short: "Add a new issue",
	Long:  "Add a new issue to a project. The project is created on first use.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAddRun(args[0])
	},
}

var issueUpdateCmd = &cobra.Command{
	Use:   "update <project> <issue-id>",
	Short: "Update an issue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueUpdateRun(cmd, args[0], args[1])
	},
}

var issueCloseCmd = &cobra.Command{
	Use:   "close <project> <issue-id>",
	Short: "Close an issue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueSetOpenRun(args[0], args[1], false)
	},
}

var issueReopenCmd = &cobra.Command{
	Use:   "reopen <project> <issue-id>",
	Short: "Reopen a closed issue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueSetOpenRun(args[0], args[1], true)
	},
}

var issueDeleteCmd = &cobra.Command{
	Use:     "delete <project> <issue-id>",
	Aliases: []string{"rm"},
	Short:   "Delete an issue",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDeleteRun(args[0], args[1])
	},
}

// fieldFlags binds the issue field flags shared by list and update.
func fieldFlags(cmd *cobra.Command, verb string) {
	cmd.Flags().StringVar(&issueTitle, "title", "", verb+" title")
	cmd.Flags().StringVar(&issueText, "text", "", verb+" text")
	cmd.Flags().StringVar(&issueCreatedBy, "by", "", verb+" reporter")
	cmd.Flags().StringVar(&issueAssignedTo, "assign", "", verb+" assignee")
	cmd.Flags().StringVar(&issueStatusText, "status", "", verb+" status text")
	cmd.Flags().StringVar(&issueOpen, "open", "", verb+" open state (true or false)")
}

func init() {
	fieldFlags(issueListCmd, "Filter by")
	issueListCmd.Flags().BoolVar(&issueJSON, "json", false, "Print issues as JSON")

	fieldFlags(issueUpdateCmd, "New")

	issueAddCmd.Flags().StringVar(&issueTitle, "title", "", "Issue title (required)")
	issueAddCmd.Flags().StringVar(&issueText, "text", "", "Issue text (required)")
	issueAddCmd.Flags().StringVar(&issueCreatedBy, "by", "", "Reporter (required)")
	issueAddCmd.Flags().StringVar(&issueAssignedTo, "assign", "", "Assignee")
	issueAddCmd.Flags().StringVar(&issueStatusText, "status", "", "Status text")
	_ = issueAddCmd.MarkFlagRequired("title")
	_ = issueAddCmd.MarkFlagRequired("text")
	_ = issueAddCmd.MarkFlagRequired("by")

	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueUpdateCmd)
	issueCmd.AddCommand(issueCloseCmd)
	issueCmd.AddCommand(issueReopenCmd)
	issueCmd.AddCommand(issueDeleteCmd)
	rootCmd.AddCommand(issueCmd)
}

// changedFields collects the field flags the user actually set.
func changedFields(cmd *cobra.Command) map[string]string {
	flags := map[string]struct {
		field string
		value *string
	}{
		"title":  {models.FieldTitle, &issueTitle},
		"text":   {models.FieldText, &issueText},
		"by":     {models.FieldCreatedBy, &issueCreatedBy},
		"assign": {models.FieldAssignedTo, &issueAssignedTo},
		"status": {models.FieldStatusText, &issueStatusText},
		"open":   {models.FieldOpen, &issueOpen},
	}
	fields := make(map[string]string)
	for name, f := range flags {
		if cmd.Flags().Changed(name) {
			fields[f.field] = *f.value
		}
	}
	return fields
}

func issueListRun(cmd *cobra.Command, project string) error {
	ctx := context.Background()
	issues, err := apiClient().ListIssues(ctx, project, store.Filter(changedFields(cmd)))
	if err != nil {
		return fmt.Errorf("list issues: %w", err)
	}

	if issueJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(issues)
	}

	if len(issues) == 0 {
		ui.Info("No issues found.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "State", "Status", "Created By", "Assigned To", "Updated"})
	for _, issue := range issues {
		_ = table.Append([]string{
			output.ShortID(issue.ID),
			issue.Title,
			output.OpenColor(issue.Open),
			output.Dash(issue.StatusText),
			issue.CreatedBy,
			output.Dash(issue.AssignedTo),
			issue.UpdatedOn.String(),
		})
	}
	_ = table.Render()
	return nil
}

// resolveIssue finds an issue by full id or by a unique id suffix, as shown
// in the list output.
func resolveIssue(ctx context.Context, project, ref string) (*models.Issue, error) {
	issues, err := apiClient().ListIssues(ctx, project, nil)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}

	var matches []*models.Issue
	for _, issue := range issues {
		if issue.ID == ref {
			return issue, nil
		}
		if strings.HasSuffix(strings.ToLower(issue.ID), strings.ToLower(ref)) {
			matches = append(matches, issue)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("issue not found in %s: %s", project, ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous issue id %q matches %d issues", ref, len(matches))
	}
}

func issueShowRun(project, ref string) error {
	issue, err := resolveIssue(context.Background(), project, ref)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(output.ShortID(issue.ID)), issue.Title)
	fmt.Fprintf(ui.Out, "  Project:     %s\n", project)
	fmt.Fprintf(ui.Out, "  State:       %s\n", output.OpenColor(issue.Open))
	fmt.Fprintf(ui.Out, "  Status:      %s\n", output.Dash(issue.StatusText))
	fmt.Fprintf(ui.Out, "  Created by:  %s\n", issue.CreatedBy)
	fmt.Fprintf(ui.Out, "  Assigned to: %s\n", output.Dash(issue.AssignedTo))
	fmt.Fprintf(ui.Out, "  Created:     %s\n", issue.CreatedOn)
	fmt.Fprintf(ui.Out, "  Updated:     %s\n", issue.UpdatedOn)
	fmt.Fprintf(ui.Out, "  Full ID:     %s\n", issue.ID)
	if issue.Text != "" {
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, issue.Text)
	}
	return nil
}

func issueAddRun(project string) error {
	in := store.CreateInput{
		Title:      issueTitle,
		Text:       issueText,
		CreatedBy:  issueCreatedBy,
		AssignedTo: issueAssignedTo,
		StatusText: issueStatusText,
	}

	if dryRun {
		ui.DryRunMsg("Would add issue to %s: %s", project, issueTitle)
		return nil
	}

	issue, err := apiClient().CreateIssue(context.Background(), project, in)
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	ui.Success("Created issue %s: %s", output.Cyan(output.ShortID(issue.ID)), issue.Title)
	ui.VerboseLog("Full ID: %s", issue.ID)
	return nil
}

func issueUpdateRun(cmd *cobra.Command, project, ref string) error {
	fields := changedFields(cmd)
	if len(fields) == 0 {
		return fmt.Errorf("no updates specified (use --title, --text, --by, --assign, --status or --open)")
	}
	return updateIssue(project, ref, fields, "Updated")
}

func issueSetOpenRun(project, ref string, open bool) error {
	verb := "Closed"
	if open {
		verb = "Reopened"
	}
	return updateIssue(project, ref, map[string]string{models.FieldOpen: fmt.Sprint(open)}, verb)
}

func updateIssue(project, ref string, fields map[string]string, verb string) error {
	ctx := context.Background()
	issue, err := resolveIssue(ctx, project, ref)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would update issue %s: %v", output.ShortID(issue.ID), fields)
		return nil
	}

	if err := apiClient().UpdateIssue(ctx, project, store.UpdateInput{ID: issue.ID, Fields: fields}); err != nil {
		return err
	}
	ui.Success("%s issue %s: %s", verb, output.Cyan(output.ShortID(issue.ID)), issue.Title)
	return nil
}

func issueDeleteRun(project, ref string) error {
	ctx := context.Background()
	issue, err := resolveIssue(ctx, project, ref)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete issue %s: %s", output.ShortID(issue.ID), issue.Title)
		return nil
	}

	if err := apiClient().DeleteIssue(ctx, project, issue.ID); err != nil {
		return err
	}
	ui.Success("Deleted issue %s: %s", output.Cyan(output.ShortID(issue.ID)), issue.Title)
	return nil
}
