package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/k-iizuka000/ai-todo-sub002/internal/store"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage tags",
}

var tagAddColor string

var tagAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a tag",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		e, err := startEngine(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer e.close()

		tag, err := e.tags.AddTag(ctx, store.TagInput{Name: args[0], Color: tagAddColor})
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Created tag %s\n", renderSuccess("✓"), renderAccent("#"+tag.Name))
	},
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags with usage counts",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		e, err := startEngine(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer e.close()

		tags := e.tags.Tags()
		if len(tags) == 0 {
			fmt.Println(renderDim("No tags"))
			return
		}
		for _, tag := range tags {
			count := e.tags.GetTagRelatedTaskCount(tag.ID)
			label := "task"
			if count != 1 {
				label = "tasks"
			}
			fmt.Printf("%-24s %s\n", renderAccent("#"+tag.Name), renderDim(fmt.Sprintf("%d %s", count, label)))
		}
	},
}

var tagRmYes bool

var tagRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a tag",
	Long: `Delete a tag. Tags still referenced by tasks cannot be deleted;
untag the tasks first.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		e, err := startEngine(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer e.close()

		tag, ok := e.tags.FindByName(args[0])
		if !ok {
			fatalf("tag %q not found", args[0])
		}

		if !tagRmYes {
			confirmed := false
			prompt := huh.NewConfirm().
				Title(fmt.Sprintf("Delete tag #%s?", tag.Name)).
				Affirmative("Delete").
				Negative("Keep").
				Value(&confirmed)
			if err := prompt.Run(); err != nil {
				fatalf("%v", err)
			}
			if !confirmed {
				fmt.Println(renderDim("Aborted"))
				return
			}
		}

		if err := e.tags.DeleteTag(ctx, tag.ID); err != nil {
			if errors.Is(err, store.ErrTagInUse) {
				fatalf("%v\nUntag those tasks first: todo task list --tag %s", err, tag.Name)
			}
			fatalf("%v", err)
		}
		fmt.Printf("%s Deleted tag %s\n", renderSuccess("✓"), "#"+tag.Name)
	},
}

func init() {
	tagAddCmd.Flags().StringVar(&tagAddColor, "color", "", "display color, e.g. #7aa2f7")
	tagRmCmd.Flags().BoolVarP(&tagRmYes, "yes", "y", false, "skip the confirmation prompt")

	tagCmd.AddCommand(tagAddCmd, tagListCmd, tagRmCmd)
	rootCmd.AddCommand(tagCmd)
}
