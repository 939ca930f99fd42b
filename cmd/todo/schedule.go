package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/k-iizuka000/ai-todo-sub002/internal/store"
	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Inspect the daily schedule",
	Long: `Inspect daily schedule placement. Placement lives on the tasks
themselves as back-references, so these commands rebuild the day from the
backend's task list.`,
}

// rebuildDay seeds the schedule store from the placement back-references
// carried by tasks, then runs a detection pass so the day's conflict list
// is current.
func rebuildDay(e *engine, date string) error {
	for _, task := range e.tasks.Tasks() {
		info := task.ScheduleInfo
		if info == nil || info.ScheduledDate != date {
			continue
		}
		_, err := e.schedule.CreateItem(date, store.ItemInput{
			Type:      types.ItemTask,
			Title:     task.Title,
			TaskID:    task.ID,
			StartTime: info.ScheduledStartTime,
			EndTime:   info.ScheduledEndTime,
			Priority:  task.Priority,
		})
		if err != nil {
			return fmt.Errorf("task %s placement: %w", task.ID, err)
		}
	}
	e.schedule.DetectConflicts(date)
	return nil
}

var scheduleShowCmd = &cobra.Command{
	Use:   "show [date]",
	Short: "Show one day's schedule",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		date := time.Now().Format("2006-01-02")
		if len(args) == 1 {
			date = args[0]
		}
		if !types.ValidDate(date) {
			fatalf("invalid date %q (want YYYY-MM-DD)", date)
		}

		ctx := context.Background()
		e, err := startEngine(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer e.close()

		if err := rebuildDay(e, date); err != nil {
			fatalf("%v", err)
		}

		day, ok := e.schedule.Day(date)
		if !ok || len(day.Items) == 0 {
			fmt.Printf("%s %s\n", renderDim("Nothing scheduled for"), date)
			return
		}

		fmt.Printf("%s\n", renderHeading(date))
		for _, item := range day.Items {
			fmt.Printf("  %s-%s  %s %s\n",
				item.StartTime, item.EndTime, item.Title,
				renderDim(fmt.Sprintf("(%dm)", item.Duration)))
		}
		fmt.Printf("\n%s\n", renderDim(fmt.Sprintf(
			"%.1fh scheduled, %.0f%% of the working day, %.0f%% complete",
			day.Stats.TotalHours,
			day.Stats.UtilizationRate*100,
			day.Stats.CompletionRate*100)))

		if conflicts := e.schedule.Conflicts(date); len(conflicts) > 0 {
			fmt.Printf("%s\n", renderWarning(fmt.Sprintf("%d conflict(s); run: todo schedule conflicts %s", len(conflicts), date)))
		}
	},
}

var scheduleConflictsCmd = &cobra.Command{
	Use:   "conflicts [date]",
	Short: "List overlapping schedule items",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		date := time.Now().Format("2006-01-02")
		if len(args) == 1 {
			date = args[0]
		}
		if !types.ValidDate(date) {
			fatalf("invalid date %q (want YYYY-MM-DD)", date)
		}

		ctx := context.Background()
		e, err := startEngine(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer e.close()

		if err := rebuildDay(e, date); err != nil {
			fatalf("%v", err)
		}

		conflicts := e.schedule.Conflicts(date)
		if len(conflicts) == 0 {
			fmt.Printf("%s\n", renderSuccess("No conflicts"))
			return
		}
		for _, c := range conflicts {
			label := renderWarning(string(c.Severity))
			if c.Severity == types.ConflictMajor {
				label = renderError(string(c.Severity))
			}
			fmt.Printf("  [%s] %s\n", label, c.Message)
		}
	},
}

var scheduleDropCmd = &cobra.Command{
	Use:   "drop <task-id> <date> [start-time]",
	Short: "Preview where a task would land on the schedule",
	Long: `Compute the slot a task would occupy if dropped onto the given day.
The slot length comes from the task's estimated hours (default one hour).
This is a preview; the daemon's drag-and-drop path performs real placement.`,
	Args: cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		taskID, date := args[0], args[1]
		start := "09:00"
		if len(args) == 3 {
			start = args[2]
		}

		ctx := context.Background()
		e, err := startEngine(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer e.close()

		if err := rebuildDay(e, date); err != nil {
			fatalf("%v", err)
		}

		item, err := e.schedule.HandleTaskDrop(taskID, date, start)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s would occupy %s %s-%s\n",
			renderAccent(item.Title), date, item.StartTime, item.EndTime)
		if conflicts := e.schedule.DetectConflicts(date); len(conflicts) > 0 {
			fmt.Printf("%s\n", renderWarning(fmt.Sprintf("%d conflict(s) would result", len(conflicts))))
		}
	},
}

func init() {
	scheduleCmd.AddCommand(scheduleShowCmd, scheduleConflictsCmd, scheduleDropCmd)
	rootCmd.AddCommand(scheduleCmd)
}
