// Package main provides the neurochat CLI entry point.
// neurochat is a terminal chat client with addressable, editable conversation history.
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"neurochat/internal/commands"
	"neurochat/internal/config"
	"neurochat/internal/hexid"
	"neurochat/internal/interact"
	"neurochat/internal/logger"
	"neurochat/internal/orchestrator"
	"neurochat/internal/output"
	"neurochat/internal/provider"
	"neurochat/internal/session"
	"neurochat/internal/shell"
	"neurochat/internal/storage"
	"neurochat/internal/testutils"
	"neurochat/internal/version"
)

var (
	logLevel   string
	logFile    string
	testMode   bool
	configFile string
	assumeYes  bool
)

var rootCmd = &cobra.Command{
	Use:   "neurochat [chat]",
	Short: "neurochat - terminal chat with editable history",
	Long: `neurochat is an interactive chat client for LLM providers. Every message gets a
short hex id that commands like /retry, /rewind and /purge use to address it.`,
	Args:         cobra.MaximumNArgs(1),
	RunE:         runChat,
	SilenceUsage: true,
}

var chatCmd = &cobra.Command{
	Use:   "chat [chat]",
	Short: "Open a chat in the interactive prompt",
	Long:  `Open the named chat file, or a new one in the chat directory, and start the prompt.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChat,
}

var runCmd = &cobra.Command{
	Use:   "run <script> [chat]",
	Short: "Execute a script of prompt lines against a chat",
	Long: `Execute each line of the script as if typed at the prompt. Lines starting with %%
are comments. Confirmations are declined unless --yes is given.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runScript,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved chats",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <chat>",
	Short: "Print a saved chat transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		if logLevel == "debug" {
			fmt.Println(version.GetDetailedVersion())
			return
		}
		fmt.Println(version.GetFormattedVersion())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: warn]")
	flags.StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr")
	flags.BoolVar(&testMode, "test-mode", false, "Run offline with deterministic ids and timestamps")
	flags.StringVar(&configFile, "config", "", "Config file [default: $XDG_CONFIG_HOME/neurochat/config.yaml]")
	flags.String("provider", "", "Provider for this session (openai|anthropic|gemini|echo)")
	flags.String("model", "", "Model for this session")
	flags.String("theme", "", "Color theme (dark|light|auto|plain)")

	bindings := map[string]string{
		"log-level":        "log-level",
		"log-file":         "log-file",
		"test-mode":        "test-mode",
		config.KeyProvider: "provider",
		config.KeyModel:    "model",
		config.KeyTheme:    "theme",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", flag, err)
			os.Exit(1)
		}
	}

	runCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Answer yes to every confirmation")

	rootCmd.AddCommand(chatCmd, runCmd, listCmd, showCmd, versionCmd)

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if err := logger.Configure(logLevel, logFile, testMode); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
}

// app holds everything a chat session needs.
type app struct {
	cfg      *config.Config
	orch     *orchestrator.Orchestrator
	store    *storage.FileStore
	printer  *output.Printer
	registry *commands.Registry
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper(), config.Options{
		ConfigFile: configFile,
		TestMode:   testMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newPrinter(cfg *config.Config) *output.Printer {
	if testMode {
		return output.NewPrinter(output.TestMode())
	}
	var opts []output.Option
	theme := output.NewTheme(cfg.Theme)
	if theme != nil {
		opts = append(opts, output.WithStyles(theme))
	} else {
		opts = append(opts, output.PlainText())
	}
	if cfg.RenderMarkdown && output.IsTerminal() {
		themeType := "auto"
		if theme != nil {
			themeType = theme.GetThemeType()
		}
		renderer, err := output.NewRenderer(themeType, 100)
		if err != nil {
			logger.Warn("Markdown rendering disabled", "error", err)
		} else {
			opts = append(opts, output.WithMarkdown(renderer))
		}
	}
	return output.NewPrinter(opts...)
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	cache := provider.NewCache(provider.DefaultConstructors())
	stateOpts := session.Options{
		Provider:       cfg.Provider,
		Model:          cfg.Model,
		HelperProvider: cfg.HelperProvider,
		HelperModel:    cfg.HelperModel,
		Timeout:        cfg.Timeout,
		Providers:      cache,
	}
	if testMode {
		stateOpts.Registry = hexid.NewRegistry(hexid.WithRand(rand.New(rand.NewPCG(1, 2))))
		stateOpts.Now = testutils.NewClock().Now
	}
	state := session.New(stateOpts)

	store := storage.NewFileStore()
	orch := orchestrator.New(state, provider.NewGateway(cache, cfg), store, orchestrator.Options{
		MaxMessages:      cfg.MaxMessages,
		KeepFailedPrompt: cfg.KeepFailedPrompt,
	})

	logger.Info("Starting neurochat", "version", version.Version, "provider", cfg.Provider, "model", cfg.Model)
	return &app{
		cfg:      cfg,
		orch:     orch,
		store:    store,
		printer:  newPrinter(cfg),
		registry: commands.NewDefaultRegistry(),
	}, nil
}

func (a *app) open(name string) error {
	path := storage.NewChatPath(a.cfg.ChatDir, testMode)
	if name != "" {
		path = commands.ResolveChatPath(a.cfg.ChatDir, name)
	}
	if err := a.orch.Open(path); err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	return nil
}

func (a *app) env(ui interact.Gateway) *commands.Env {
	return &commands.Env{
		Orch:      a.orch,
		UI:        ui,
		Out:       a.printer,
		Clipboard: commands.NewSystemClipboard(),
		Registry:  a.registry,
		ChatDir:   a.cfg.ChatDir,
		TestMode:  testMode,
	}
}

func argOrEmpty(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func runChat(_ *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.open(argOrEmpty(args, 0)); err != nil {
		return err
	}
	defer a.orch.Close()

	historyFile := ""
	if !testMode {
		if dir, err := config.DefaultConfigDir(); err == nil {
			historyFile = filepath.Join(dir, "history")
		}
	}
	term, err := interact.NewTerminal(interact.TerminalConfig{
		Prompt:      shell.Prompt(a.orch),
		HistoryFile: historyFile,
		Commands:    a.registry.Names(),
		Printer:     a.printer,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := term.Close(); err != nil {
			logger.Debug("Terminal close failed", "error", err)
		}
	}()

	a.printer.Println(version.GetFormattedVersion())
	a.printer.Comment(fmt.Sprintf("Chat %s. Type /help for commands or /exit to quit.", a.orch.Chat().Path))
	if msgs := a.orch.Chat().Doc.Messages; len(msgs) > 0 {
		a.printer.Transcript(msgs, 4)
	}

	return shell.New(a.registry, a.env(term)).Run(context.Background(), term)
}

func runScript(_ *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open script: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := a.open(argOrEmpty(args, 1)); err != nil {
		return err
	}
	defer a.orch.Close()

	logger.Info("Running script", "script", args[0], "chat", a.orch.Chat().Path)
	ui := &interact.AutoGateway{Assume: assumeYes, Printer: a.printer}
	return shell.New(a.registry, a.env(ui)).RunScript(context.Background(), file)
}

func runList(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	printer := newPrinter(cfg)
	summaries, err := storage.NewFileStore().List(cfg.ChatDir)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		printer.Comment("No chats in " + cfg.ChatDir)
		return nil
	}
	for _, s := range summaries {
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		printer.Println(fmt.Sprintf("%s  %s  %d messages  %s",
			filepath.Base(s.Path), title, s.Messages, s.Metadata.Updated.Format("2006-01-02 15:04")))
	}
	return nil
}

func runShow(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	printer := newPrinter(cfg)
	path := commands.ResolveChatPath(cfg.ChatDir, args[0])
	doc, err := storage.NewFileStore().Load(path)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	if doc.Metadata.Title != "" {
		printer.Info("Title: " + doc.Metadata.Title)
	}
	printer.Transcript(doc.Messages, 0)
	return nil
}
