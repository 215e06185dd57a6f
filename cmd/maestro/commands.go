package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/agentfleet/maestro/pkg/api"
	"github.com/agentfleet/maestro/pkg/config"
	"github.com/agentfleet/maestro/pkg/llm"
	"github.com/agentfleet/maestro/pkg/orchestrator"
	"github.com/agentfleet/maestro/pkg/storage"
	"github.com/agentfleet/maestro/pkg/workflow"

	"github.com/spf13/cobra"
)

func newOrchestrator(plannerMode string) *orchestrator.Orchestrator {
	cfg := config.Load()
	client := llm.NewAnthropicClient(cfg.AnthropicAPIKey)
	return orchestrator.New(client, orchestrator.Options{
		WorkingDirectory: cfg.WorkingDirectory,
		Model:            cfg.Model,
		LogDir:           cfg.AgentLogDir,
		LoggingEnabled:   cfg.AgentLoggingEnabled,
		PlannerMode:      orchestrator.PlannerMode(plannerMode),
		EnableMonitoring: true,
	}, slog.Default())
}

// openStore connects to the configured database, or returns nil when the
// environment has no database settings.
func openStore(ctx context.Context) *storage.Store {
	dbCfg, err := storage.LoadConfigFromEnv()
	if err != nil {
		slog.Debug("Database not configured, persistence disabled", "reason", err)
		return nil
	}
	client, err := storage.NewClient(ctx, dbCfg)
	if err != nil {
		slog.Warn("Database unavailable, persistence disabled", "error", err)
		return nil
	}
	return storage.NewStore(client)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func init() {
	var taskType string
	var mode string
	var plannerMode string
	executeCmd := &cobra.Command{
		Use:   "execute <prompt>",
		Short: "Plan and execute a task with a fleet of agents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			orch := newOrchestrator(plannerMode)
			orch.Start()
			defer orch.Stop()

			if store := openStore(ctx); store != nil {
				orch.AttachPersistence(store)
			}

			result, err := orch.Execute(ctx, args[0], taskType, mode)
			if err != nil {
				return err
			}
			if err := printJSON(result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("task failed: %s", result.Error)
			}
			return nil
		},
	}
	executeCmd.Flags().StringVar(&taskType, "task-type", workflow.TypeCustom, "task type (feature_implementation, bug_fix, ...)")
	executeCmd.Flags().StringVar(&mode, "mode", "sequential", "execution mode: sequential or parallel")
	executeCmd.Flags().StringVar(&plannerMode, "planner", string(orchestrator.PlannerTemplate), "planner mode: template or ai")
	rootCmd.AddCommand(executeCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show orchestrator and fleet status",
		RunE: func(cmd *cobra.Command, args []string) error {
			orch := newOrchestrator("")
			defer orch.Stop()
			return printJSON(orch.GetStatus())
		},
	}
	rootCmd.AddCommand(statusCmd)

	var roleFilter string
	listAgentsCmd := &cobra.Command{
		Use:   "list-agents",
		Short: "List persisted agent records",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := openStore(cmd.Context())
			if store == nil {
				return fmt.Errorf("database not configured (set DB_PASSWORD and friends)")
			}
			records, err := store.ListAgents(cmd.Context(), "", roleFilter)
			if err != nil {
				return err
			}
			return printJSON(records)
		},
	}
	listAgentsCmd.Flags().StringVar(&roleFilter, "role", "", "filter by agent role")
	rootCmd.AddCommand(listAgentsCmd)

	listTasksCmd := &cobra.Command{
		Use:   "list-tasks",
		Short: "List persisted task records",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := openStore(cmd.Context())
			if store == nil {
				return fmt.Errorf("database not configured (set DB_PASSWORD and friends)")
			}
			records, err := store.ListTasks(cmd.Context(), "")
			if err != nil {
				return err
			}
			return printJSON(records)
		},
	}
	rootCmd.AddCommand(listTasksCmd)

	agentDetailsCmd := &cobra.Command{
		Use:   "agent-details <agent-id>",
		Short: "Show one persisted agent record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := openStore(cmd.Context())
			if store == nil {
				return fmt.Errorf("database not configured (set DB_PASSWORD and friends)")
			}
			record, err := store.GetAgent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(record)
		},
	}
	rootCmd.AddCommand(agentDetailsCmd)

	taskDetailsCmd := &cobra.Command{
		Use:   "task-details <task-id>",
		Short: "Show one persisted task record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := openStore(cmd.Context())
			if store == nil {
				return fmt.Errorf("database not configured (set DB_PASSWORD and friends)")
			}
			record, err := store.GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(record)
		},
	}
	rootCmd.AddCommand(taskDetailsCmd)

	var dryRun bool
	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove accumulated agent log directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			entries, err := os.ReadDir(cfg.AgentLogDir)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Nothing to clean")
					return nil
				}
				return err
			}

			removed := 0
			for _, entry := range entries {
				if !entry.IsDir() {
					continue
				}
				path := filepath.Join(cfg.AgentLogDir, entry.Name())
				if dryRun {
					fmt.Printf("Would remove %s\n", path)
					continue
				}
				if err := os.RemoveAll(path); err != nil {
					slog.Warn("Failed to remove log directory", "path", path, "error", err)
					continue
				}
				removed++
			}
			if !dryRun {
				fmt.Printf("Removed %d log directories\n", removed)
			}
			return nil
		},
	}
	cleanCmd.Flags().BoolVar(&dryRun, "dry-run", false, "list what would be removed without removing")
	rootCmd.AddCommand(cleanCmd)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter .env in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			const template = `# maestro configuration
AGENT_LOG_DIR=./agent_logs
ENABLE_AGENT_LOGGING=true
#ANTHROPIC_API_KEY=
#ANTHROPIC_MODEL=claude-sonnet-4-5-20250929

# Optional dashboard persistence
#DB_HOST=localhost
#DB_PORT=5432
#DB_USER=maestro
#DB_PASSWORD=
#DB_NAME=maestro
`
			if _, err := os.Stat(".env"); err == nil {
				return fmt.Errorf(".env already exists")
			}
			if err := os.WriteFile(".env", []byte(template), 0o644); err != nil {
				return err
			}
			fmt.Println("Wrote .env")
			return nil
		},
	}
	rootCmd.AddCommand(initCmd)

	var httpPort string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/WebSocket API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			orch := newOrchestrator(string(orchestrator.PlannerTemplate))
			orch.Start()
			defer orch.Stop()

			if store := openStore(cmd.Context()); store != nil {
				orch.AttachPersistence(store)
			}

			server := api.NewServer(orch, slog.Default())
			return server.Run(":" + httpPort)
		},
	}
	serveCmd.Flags().StringVar(&httpPort, "port", getEnv("HTTP_PORT", "8080"), "HTTP listen port")
	rootCmd.AddCommand(serveCmd)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
