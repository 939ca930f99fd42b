package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/k-iizuka000/ai-todo-sub002/internal/store"
	"github.com/k-iizuka000/ai-todo-sub002/internal/suggest"
	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var (
	taskAddDescription string
	taskAddPriority    string
	taskAddProject     string
	taskAddTags        []string
	taskAddDue         string
	taskAddEstimate    float64
)

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task",
	Long: `Create a task on the backend.

The --due flag accepts natural language ("tomorrow 5pm", "next friday")
as well as ISO dates.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		e, err := startEngine(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer e.close()

		input := store.TaskInput{
			Title:          strings.Join(args, " "),
			Description:    taskAddDescription,
			EstimatedHours: taskAddEstimate,
		}

		if taskAddPriority != "" {
			priority, err := types.NormalizePriority(taskAddPriority)
			if err != nil {
				fatalf("%v", err)
			}
			input.Priority = priority
		}

		if taskAddDue != "" {
			due, err := parseDue(taskAddDue, time.Now())
			if err != nil {
				fatalf("%v", err)
			}
			input.DueDate = &due
		}

		if taskAddProject != "" {
			project, ok := e.projects.Get(taskAddProject)
			if !ok {
				fatalf("project %q not found", taskAddProject)
			}
			input.ProjectID = &project.ID
		}

		for _, name := range taskAddTags {
			tag, ok := e.tags.FindByName(name)
			if !ok {
				fatalf("tag %q not found (create it with: todo tag add %s)", name, name)
			}
			input.Tags = append(input.Tags, *tag)
		}

		task, err := e.tasks.AddTask(ctx, input)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Created %s %s\n", renderSuccess("✓"), renderAccent(task.ID), task.Title)
		if task.DueDate != nil {
			fmt.Printf("  due %s\n", renderDim(task.DueDate.Format("2006-01-02 15:04")))
		}
	},
}

var (
	taskListStatus  string
	taskListProject string
	taskListTag     string
)

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		e, err := startEngine(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer e.close()

		tasks := e.tasks.Tasks()
		if taskListProject != "" {
			tasks = e.tasks.TasksByProject(taskListProject)
		}
		if taskListTag != "" {
			tag, ok := e.tags.FindByName(taskListTag)
			if !ok {
				fatalf("tag %q not found", taskListTag)
			}
			tasks = e.tasks.TasksByTag(tag.ID)
		}
		if taskListStatus != "" {
			status, err := types.NormalizeStatus(taskListStatus)
			if err != nil {
				fatalf("%v", err)
			}
			filtered := tasks[:0:0]
			for _, task := range tasks {
				if task.Status == status {
					filtered = append(filtered, task)
				}
			}
			tasks = filtered
		}

		if len(tasks) == 0 {
			fmt.Println(renderDim("No tasks"))
			return
		}
		for _, task := range tasks {
			printTaskLine(task)
		}
	},
}

func printTaskLine(task *types.Task) {
	line := fmt.Sprintf("%-14s %-12s %s", renderDim(shortID(task.ID)), renderStatus(task.Status), task.Title)
	var extras []string
	for _, tag := range task.Tags {
		extras = append(extras, "#"+tag.Name)
	}
	if task.DueDate != nil {
		due := task.DueDate.Format("2006-01-02")
		if task.DueDate.Before(time.Now()) && task.Status != types.StatusDone {
			due = renderError(due + " overdue")
		}
		extras = append(extras, "due "+due)
	}
	if len(extras) > 0 {
		line += "  " + renderDim(strings.Join(extras, " "))
	}
	fmt.Println(line)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <task-id>",
	Short: "Mark a task done",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		e, err := startEngine(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer e.close()

		status := types.StatusDone
		task, err := e.tasks.UpdateTask(ctx, args[0], store.TaskPatch{Status: &status})
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Done: %s\n", renderSuccess("✓"), task.Title)
	},
}

var taskSuggestLimit int

var taskSuggestCmd = &cobra.Command{
	Use:   "suggest <task-id>",
	Short: "Suggest tags for a task",
	Long: `Ask Claude which of your existing tags fit the given task. Requires
ANTHROPIC_API_KEY. Suggestions are printed, never applied automatically.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		e, err := startEngine(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer e.close()

		task, ok := e.tasks.Get(args[0])
		if !ok {
			fatalf("task %q not found", args[0])
		}
		available := e.tags.Tags()
		if len(available) == 0 {
			fmt.Println(renderDim("No tags exist yet; nothing to suggest"))
			return
		}

		client, err := suggest.NewClient(os.Getenv("ANTHROPIC_API_KEY"), "")
		if err != nil {
			fatalf("%v", err)
		}
		suggestions, err := client.SuggestTags(ctx, task, available, taskSuggestLimit)
		if err != nil {
			fatalf("%v", err)
		}
		if len(suggestions) == 0 {
			fmt.Println(renderDim("No suitable tags found"))
			return
		}
		for _, s := range suggestions {
			fmt.Printf("  %s %s\n", renderAccent("#"+s.Name), renderDim(s.Reason))
		}
	},
}

// parseDue turns a natural-language or ISO due date into a time.
func parseDue(text string, now time.Time) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", text, now.Location()); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	result, err := w.Parse(text, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse due date %q: %w", text, err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("could not understand due date %q", text)
	}
	return result.Time, nil
}

func init() {
	taskAddCmd.Flags().StringVarP(&taskAddDescription, "description", "d", "", "task description")
	taskAddCmd.Flags().StringVarP(&taskAddPriority, "priority", "p", "", "priority (low, medium, high, urgent, critical)")
	taskAddCmd.Flags().StringVar(&taskAddProject, "project", "", "project id")
	taskAddCmd.Flags().StringSliceVarP(&taskAddTags, "tag", "t", nil, "tag name (repeatable)")
	taskAddCmd.Flags().StringVar(&taskAddDue, "due", "", "due date (natural language or YYYY-MM-DD)")
	taskAddCmd.Flags().Float64Var(&taskAddEstimate, "estimate", 0, "estimated hours")

	taskListCmd.Flags().StringVarP(&taskListStatus, "status", "s", "", "filter by status")
	taskListCmd.Flags().StringVar(&taskListProject, "project", "", "filter by project id")
	taskListCmd.Flags().StringVar(&taskListTag, "tag", "", "filter by tag name")

	taskSuggestCmd.Flags().IntVar(&taskSuggestLimit, "limit", 3, "maximum suggestions")

	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskDoneCmd, taskSuggestCmd)
	rootCmd.AddCommand(taskCmd)
}
