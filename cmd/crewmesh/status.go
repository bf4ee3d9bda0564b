package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/store/sqlite"
	"github.com/hupe1980/crewmesh/telemetry"
)

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show a task's status, transcript and telemetry",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	taskID := args[0]

	task, err := db.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	fmt.Printf("Task: %s\n", task.Title)
	fmt.Printf("  ID: %s\n", task.ID)
	fmt.Printf("  Crew: %s\n", task.CrewID)
	printTaskStatus(task)
	if task.Started != nil && task.Completed != nil {
		fmt.Printf("  Duration: %s\n", task.Completed.Sub(*task.Started).Round(time.Millisecond))
	}

	messages, err := db.Messages(ctx, taskID)
	if err != nil {
		return err
	}
	if len(messages) > 0 {
		fmt.Println("\nTranscript:")
		for _, m := range messages {
			printMessage(m)
		}
	}

	events, err := db.TelemetryEvents(ctx, taskID)
	if err != nil {
		return err
	}
	if len(events) > 0 {
		printTelemetry(events)
	}
	return nil
}

func printTaskStatus(task *core.Task) {
	switch task.Status {
	case core.TaskCompleted:
		color.Green("  Status: %s", task.Status)
	case core.TaskFailed:
		color.Red("  Status: %s (%s)", task.Status, task.Error)
	default:
		fmt.Printf("  Status: %s\n", task.Status)
	}
}

func printMessage(m core.TaskMessage) {
	author := string(m.Author)
	if m.Author == core.AuthorAgent && m.AgentName != "" {
		author = m.AgentName
	}
	content := m.Content
	if len(content) > 300 {
		content = content[:300] + "..."
	}
	fmt.Printf("  [%s] %s: %s\n", m.Timestamp.Format("15:04:05"), author, strings.ReplaceAll(content, "\n", "\n    "))
}

func printTelemetry(events []core.TelemetryEvent) {
	stats := telemetry.Aggregate(events)

	targets := make([]string, 0, len(stats))
	for target := range stats {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	fmt.Println("\nTelemetry:")
	for _, target := range targets {
		s := stats[target]
		line := fmt.Sprintf("  %-30s %d calls, %.0f%% ok, avg %s",
			s.Target, s.Calls, s.SuccessRate()*100, s.AvgLatency.Round(time.Millisecond))
		if s.PromptTokens+s.CompletionTokens > 0 {
			line += fmt.Sprintf(", %d+%d tokens", s.PromptTokens, s.CompletionTokens)
		}
		if s.EstimatedCostUSD > 0 {
			line += fmt.Sprintf(", ~$%.4f", s.EstimatedCostUSD)
		}
		fmt.Println(line)
	}
}
