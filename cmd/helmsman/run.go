package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/avickers/helmsman/internal/agent"
	"github.com/avickers/helmsman/internal/api"
	"github.com/avickers/helmsman/internal/config"
	"github.com/avickers/helmsman/internal/git"
	"github.com/avickers/helmsman/internal/orchestrator"
	"github.com/avickers/helmsman/internal/signals"
	"github.com/avickers/helmsman/internal/state"
	"github.com/avickers/helmsman/internal/tui"
	"github.com/avickers/helmsman/pkg/models"
)

const journalCap = 1000

var (
	runHeadless    bool
	runUseAPI      bool
	runActionsFile string
	runEpicFilter  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an orchestration session",
	Long: `Start an orchestration session in the current directory.

The orchestrator agent is woken once per event (manual triggers, timer
ticks, worker completions, human answers), each time with a fresh
snapshot of project state. Its reply is parsed for delegations and
questions.

Control a running session from another terminal:
  helmsman trigger [reason]    queue a manual orchestration pass
  helmsman pause | resume      toggle automated dispatch
  helmsman answer <id> <text>  answer a pending question`,
	RunE: runSession,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Start an orchestration session with the watch view",
	RunE: func(cmd *cobra.Command, args []string) error {
		runHeadless = false
		return runSession(cmd, args)
	},
}

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&runHeadless, "headless", false, "Run without the watch TUI")
	cmd.Flags().BoolVar(&runUseAPI, "api", false, "Drive agents through the Anthropic API instead of the claude CLI")
	cmd.Flags().StringVar(&runActionsFile, "actions", "", "Path to the per-status next-actions YAML")
	cmd.Flags().StringVar(&runEpicFilter, "epic", "", "Narrow state snapshots to one epic")
}

func init() {
	addSessionFlags(runCmd)
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	agents := cfg.Agents
	if len(agents) == 0 {
		agents = config.DefaultAgents()
	}

	actions, err := loadActions(cfg)
	if err != nil {
		return err
	}

	epicFilter := runEpicFilter
	if epicFilter == "" {
		epicFilter = cfg.Orchestrator.EpicFilter
	}

	// Persistence is best-effort: a session still works without it.
	var db *state.DB
	var persister orchestrator.QuestionPersister
	if opened, err := openStateDB(cfg, workDir); err != nil {
		log.Printf("[helmsman] state db unavailable, questions will not persist: %v", err)
	} else {
		db = opened
		persister = db
		defer db.Close()
		if _, err := db.PruneEvents(journalCap); err != nil {
			log.Printf("[helmsman] journal prune: %v", err)
		}
	}

	store := orchestrator.NewQuestionStore(persister)
	if db != nil {
		if questions, err := db.LoadQuestions(); err != nil {
			log.Printf("[helmsman] load questions: %v", err)
		} else {
			store.Load(questions)
		}
	}

	runner, shutdown, err := buildRunner(cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	var notify func(orchestrator.Event)
	dcfg := orchestrator.Config{
		OrchestratorID: cfg.Orchestrator.ID,
		WorkDir:        workDir,
		Agents:         agents,
		EpicFilter:     epicFilter,
		NextActions:    actions,
		OnEvent: func(ev orchestrator.Event) {
			if db != nil {
				if err := db.AppendEvent(string(ev.Type), ev.Summary(), ev.Timestamp); err != nil {
					log.Printf("[helmsman] journal append: %v", err)
				}
			}
			if notify != nil {
				notify(ev)
			}
		},
	}

	branch := git.NewBranchReader(git.NewRunner(workDir))
	dispatcher := orchestrator.NewDispatcher(dcfg, cfg.Automation, runner, store, nil, branch)

	watcher, err := signals.NewWatcher(workDir, signals.NewDispatcherControl(dispatcher))
	if err != nil {
		return fmt.Errorf("signal watcher: %w", err)
	}
	defer watcher.Close()

	// Governors reload live when the project config changes.
	if path := config.GetProjectConfigPath(); path != "" {
		err := config.Watch(path,
			func(fresh *config.Config) {
				dispatcher.SetGovernors(fresh.Automation)
			},
			func(err error) {
				log.Printf("[helmsman] config reload failed, keeping previous governors: %v", err)
			})
		if err != nil {
			log.Printf("[helmsman] config watch: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runHeadless {
		return runHeadlessSession(ctx, dispatcher, &notify)
	}
	return runWatchSession(ctx, stop, dispatcher, runner, store, agents, cfg.TUI.RefreshRate, &notify)
}

// openStateDB opens the configured database, defaulting to the
// project-local path under .helmsman/.
func openStateDB(cfg *config.Config, workDir string) (*state.DB, error) {
	if cfg.State.Path == "" {
		return state.OpenProject(workDir)
	}
	path := cfg.State.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	db, err := state.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// loadActions resolves the next-actions catalog from the flag, the config,
// or the built-in defaults.
func loadActions(cfg *config.Config) (map[models.StoryStatus][]models.NextAction, error) {
	path := runActionsFile
	if path == "" {
		path = cfg.Orchestrator.ActionsFile
	}
	if path == "" {
		return config.DefaultNextActions(), nil
	}
	actions, err := config.LoadNextActions(path)
	if err != nil {
		return nil, err
	}
	return actions, nil
}

// buildRunner selects the agent backend: the claude CLI by default, the
// Anthropic API when requested or when Bedrock is configured.
func buildRunner(cfg *config.Config) (orchestrator.AgentRunner, func(), error) {
	if runUseAPI || cfg.Anthropic.UseBedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, nil, err
		}
		client, err := api.NewClient(api.ClientConfig{
			Model:         anthropic.Model(cfg.Endpoint.Model),
			APIKey:        key,
			UseAWSBedrock: cfg.Anthropic.UseBedrock,
			AWSRegion:     cfg.Anthropic.BedrockRegion,
		})
		if err != nil {
			return nil, nil, err
		}
		r := api.NewRunner(client, "")
		return r, r.Shutdown, nil
	}

	if err := CheckClaudeCLI(); err != nil {
		return nil, nil, err
	}
	m := agent.NewManager(agent.ClaudeCommandFactory(cfg.Endpoint))
	return m, m.Shutdown, nil
}

// runHeadlessSession prints events to the terminal and blocks until the
// context is canceled.
func runHeadlessSession(ctx context.Context, dispatcher *orchestrator.Dispatcher, notify *func(orchestrator.Event)) error {
	eventColor := color.New(color.FgCyan)
	*notify = func(ev orchestrator.Event) {
		eventColor.Printf("%s  %s\n", ev.Timestamp.Format("15:04:05"), ev.Summary())
	}

	color.New(color.Bold).Println("helmsman session started (headless)")
	fmt.Println("Press Ctrl+C to stop.")

	dispatcher.Run(ctx)
	fmt.Println("session stopped")
	return nil
}

// runWatchSession hosts the watch TUI, feeding it events, the agent
// roster, and pending questions.
func runWatchSession(
	ctx context.Context,
	stop context.CancelFunc,
	dispatcher *orchestrator.Dispatcher,
	runner orchestrator.AgentRunner,
	store *orchestrator.QuestionStore,
	agents []models.AgentProfile,
	refreshRate time.Duration,
	notify *func(orchestrator.Event),
) error {
	program, _ := tui.NewWatchProgram(dispatcher.Governors())
	*notify = func(ev orchestrator.Event) {
		program.Send(tui.LogMsg{Timestamp: ev.Timestamp, Line: ev.Summary()})
	}

	go dispatcher.Run(ctx)

	if refreshRate <= 0 {
		refreshRate = 100 * time.Millisecond
	}
	go func() {
		ticker := time.NewTicker(refreshRate)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				program.Quit()
				return
			case <-ticker.C:
				rows := make([]tui.AgentRow, 0, len(agents))
				for _, a := range agents {
					rows = append(rows, tui.AgentRow{Profile: a, Running: runner.IsRunning(a.ID)})
				}
				program.Send(tui.AgentsMsg{Agents: rows})
				program.Send(tui.QuestionsMsg{Questions: store.Pending()})
				program.Send(tui.GovernorsMsg{Governors: dispatcher.Governors()})
			}
		}
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("watch view: %w", err)
	}
	// Quitting the TUI ends the session.
	stop()
	return nil
}
