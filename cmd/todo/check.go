package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/k-iizuka000/ai-todo-sub002/internal/integrity"
)

var (
	checkFormat string
	checkFix    bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a one-shot integrity audit",
	Long: `Load the working copy from the backend and run a single integrity
audit over it. With --fix, safe repairs (tag reference cleanup, timestamp
normalization) are applied; structural damage is only ever reported.`,
	Run: func(cmd *cobra.Command, args []string) {
		if checkFormat != "text" && checkFormat != "yaml" {
			fatalf("unknown format %q (want text or yaml)", checkFormat)
		}

		ctx := context.Background()
		e, err := startEngine(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer e.close()

		monitor := integrity.NewMonitor(integrity.Config{
			Tasks:   e.tasks,
			AutoFix: checkFix,
			Logger:  log.New(io.Discard, "", 0),
		})
		report := monitor.RunOnce()

		switch checkFormat {
		case "yaml":
			if err := writeYAML(os.Stdout, report); err != nil {
				fatalf("encoding report: %v", err)
			}
		default:
			printReport(report)
		}

		if report.QualityScore < 100 {
			os.Exit(1)
		}
	},
}

func printReport(report integrity.Report) {
	fmt.Printf("%s\n", renderHeading("Integrity report"))
	fmt.Printf("Checked:  %d tasks at %s\n", report.TasksChecked, report.CheckedAt.Format("15:04:05"))
	fmt.Printf("Quality:  %s\n", renderQuality(report.QualityScore))
	if report.FixedCount > 0 {
		fmt.Printf("Fixed:    %s\n", renderSuccess(fmt.Sprintf("%d issue(s)", report.FixedCount)))
	}

	if len(report.Issues) == 0 {
		fmt.Printf("\n%s\n", renderSuccess("No issues found"))
		return
	}

	fmt.Printf("\n%d issue(s) remaining:\n", len(report.Issues))
	for _, issue := range report.Issues {
		fmt.Printf("  [%s] %s %s\n", renderSeverity(issue.Severity), issue.Type, renderDim(issue.AffectedTaskID))
		fmt.Printf("        %s\n", issue.Description)
		if issue.RecommendedAction != "" {
			fmt.Printf("        %s\n", renderDim(issue.RecommendedAction))
		}
	}
}

// writeYAML emits the report under its JSON field names. yaml.v3 does not
// read json struct tags, so the report goes through an untyped round trip.
func writeYAML(w io.Writer, report integrity.Report) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	var untyped map[string]any
	if err := json.Unmarshal(raw, &untyped); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(untyped); err != nil {
		return err
	}
	return enc.Close()
}

func renderQuality(score int) string {
	label := fmt.Sprintf("%d/100", score)
	switch {
	case score == 100:
		return renderSuccess(label)
	case score >= 75:
		return renderWarning(label)
	default:
		return renderError(label)
	}
}

func init() {
	checkCmd.Flags().StringVar(&checkFormat, "format", "text", "output format: text or yaml")
	checkCmd.Flags().BoolVar(&checkFix, "fix", false, "apply safe automatic repairs")
	rootCmd.AddCommand(checkCmd)
}
