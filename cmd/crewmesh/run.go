package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	openaisdk "github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/crewmesh"
	"github.com/hupe1980/crewmesh/capability"
	"github.com/hupe1980/crewmesh/config"
	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/logging"
	"github.com/hupe1980/crewmesh/oracle/anthropic"
	"github.com/hupe1980/crewmesh/oracle/openai"
	"github.com/hupe1980/crewmesh/store/sqlite"
	"github.com/hupe1980/crewmesh/transport/directline"
)

var (
	runCrewFile string
	runTitle    string
	runTolerant bool
)

var runCmd = &cobra.Command{
	Use:   "run [task description]",
	Short: "Run a task against a crew",
	Long: `Run a task against a crew defined in a crew file.

The crew file is YAML describing the crew and its agents:

  name: research-crew
  description: Researches and summarizes topics
  agents:
    - name: Researcher
      description: Finds and verifies facts
      endpoint: ${RESEARCHER_SECRET}
      role: research
    - name: Writer
      description: Writes clear summaries
      endpoint: ${WRITER_SECRET}
      role: writing

Examples:
  crewmesh run --crew crew.yaml "Summarize the history of the Hanseatic League"
  crewmesh run --crew crew.yaml --title "Quarterly report" "Draft the Q3 summary"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVar(&runCrewFile, "crew", "", "Crew definition file (required)")
	runCmd.Flags().StringVar(&runTitle, "title", "", "Task title (defaults to the first words of the description)")
	runCmd.Flags().BoolVar(&runTolerant, "tolerant", false, "Replan around failed agent calls instead of aborting")
	runCmd.MarkFlagRequired("crew")
}

func runTask(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	crew, err := loadCrewFile(runCrewFile)
	if err != nil {
		return err
	}

	description := strings.Join(args, " ")
	title := runTitle
	if title == "" {
		title = shortTitle(description)
	}

	db, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	planner, err := buildOracle(cfg)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})

	mesh := crewmesh.New(func(o *crewmesh.Options) {
		o.AgentStore = db
		o.CrewStore = db
		o.TaskStore = db
		o.TelemetryWriter = db
		o.Oracle = planner
		o.Transport = directline.New(func(t *directline.Options) {
			t.BaseURL = cfg.Transport.BaseURL
			t.PollInterval = cfg.Transport.PollInterval
			t.MaxPolls = cfg.Transport.MaxPolls
		})
		o.MaxIterations = cfg.Run.MaxIterations
		o.Tolerant = runTolerant || cfg.Run.Tolerant
		o.RetryPolicy = capability.RetryPolicy{
			MaxAttempts: cfg.Run.RetryAttempts,
			Backoff:     cfg.Run.RetryBackoff,
		}
		o.Logger = logger
	})

	ctx := cmd.Context()
	if err := mesh.CreateCrew(ctx, crew); err != nil {
		return fmt.Errorf("store crew: %w", err)
	}

	fmt.Printf("Running task %q with crew %q (%d agents)\n\n",
		title, crew.Name, len(crew.ActiveMembers()))

	start := time.Now()
	result, err := mesh.RunTask(ctx, crew.ID, title, description)
	if err != nil {
		return err
	}

	elapsed := time.Since(start).Round(time.Millisecond)
	switch result.Status {
	case core.TaskCompleted:
		color.Green("Task completed in %s (%d plan steps, %d agent calls)\n", elapsed, result.PlanSteps, result.AgentCalls)
		fmt.Println()
		fmt.Println(result.FinalAnswer)
	case core.TaskFailed:
		color.Red("Task failed in %s: %s\n", elapsed, result.Cause)
	}
	return nil
}

// crewFileAgent is one agent entry in a crew definition file.
type crewFileAgent struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	Endpoint    string `mapstructure:"endpoint"`
	Role        string `mapstructure:"role"`
	Inactive    bool   `mapstructure:"inactive"`
}

// crewFile is the YAML layout of a crew definition.
type crewFile struct {
	Name        string          `mapstructure:"name"`
	Description string          `mapstructure:"description"`
	Agents      []crewFileAgent `mapstructure:"agents"`
}

// loadCrewFile reads a crew definition and expands ${VAR} references in
// agent endpoints.
func loadCrewFile(path string) (core.Crew, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return core.Crew{}, fmt.Errorf("read crew file: %w", err)
	}

	var cf crewFile
	if err := v.Unmarshal(&cf); err != nil {
		return core.Crew{}, fmt.Errorf("parse crew file: %w", err)
	}
	if cf.Name == "" {
		return core.Crew{}, fmt.Errorf("crew file %s: name is required", path)
	}
	if len(cf.Agents) == 0 {
		return core.Crew{}, fmt.Errorf("crew file %s: at least one agent is required", path)
	}

	crew := core.Crew{
		ID:          core.NewID(),
		Name:        cf.Name,
		Description: cf.Description,
		Version:     1,
		Created:     time.Now().UTC(),
	}
	for i, a := range cf.Agents {
		if a.Name == "" {
			return core.Crew{}, fmt.Errorf("crew file %s: agent %d has no name", path, i)
		}
		crew.Members = append(crew.Members, core.CrewMember{
			Agent: core.Agent{
				ID:          core.NewID(),
				Name:        a.Name,
				Description: a.Description,
				Endpoint:    expandEnv(a.Endpoint),
				Active:      !a.Inactive,
			},
			Role:     a.Role,
			Position: i,
		})
	}
	return crew, nil
}

func buildOracle(cfg *config.Config) (core.Oracle, error) {
	switch cfg.Oracle.Provider {
	case "openai", "":
		var clientOpts []openaioption.RequestOption
		if cfg.Oracle.APIKey != "" {
			clientOpts = append(clientOpts, openaioption.WithAPIKey(cfg.Oracle.APIKey))
		}
		client := openaisdk.NewClient(clientOpts...)
		return openai.NewFromClient(&client, func(o *openai.Options) {
			if cfg.Oracle.Model != "" {
				o.Model = cfg.Oracle.Model
			}
			o.Temperature = cfg.Oracle.Temperature
			o.MaxCompletionTokens = int64(cfg.Oracle.MaxTokens)
		}), nil
	case "anthropic":
		return anthropic.New(func(o *anthropic.Options) {
			if cfg.Oracle.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Oracle.Model)
			}
			o.Temperature = cfg.Oracle.Temperature
			o.MaxTokens = int64(cfg.Oracle.MaxTokens)
			o.APIKey = cfg.Oracle.APIKey
		}), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Oracle.Provider)
	}
}

// expandEnv expands ${VAR} references in crew file values.
func expandEnv(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.ExpandEnv(s)
}

func shortTitle(description string) string {
	words := strings.Fields(description)
	if len(words) > 8 {
		words = words[:8]
	}
	return strings.Join(words, " ")
}
