package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"tasks/internal/client"
	"tasks/internal/logger"
	"tasks/internal/taskcache"
	"tasks/internal/tui"
	"tasks/internal/util"
)

func main() {
	defaults := taskcache.DefaultOptions()

	apiFlag := flag.String("api", util.EnvOrDefault("TASKS_API_URL", client.DefaultBaseURL), "Base URL of the tasks API")
	retryFlag := flag.Int("retry", util.EnvIntOrDefault("TASKS_QUERY_RETRY", defaults.Retries), "Retries for a failed list fetch")
	toastFlag := flag.Duration("toast", util.EnvDurationOrDefault("TASKS_TOAST_TIMEOUT", tui.DefaultToastTimeout), "How long failure notifications stay visible")
	logFlag := flag.String("log", util.EnvOrDefault("TASKS_TUI_LOG", ""), "Write debug logs to this file")
	flag.Parse()

	// The terminal belongs to the UI, so logs only ever go to a file.
	log := zap.NewNop()
	if *logFlag != "" {
		log = logger.New(logger.Config{Level: "debug", Format: "json", Output: *logFlag})
	}
	defer func() { _ = log.Sync() }()

	api, err := client.New(*apiFlag, client.WithLogger(log.Named("client")))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	opts := defaults
	opts.Retries = *retryFlag
	opts.Logger = log.Named("cache")
	query := taskcache.NewQueryClient(api, opts)

	p := tea.NewProgram(tui.New(query, *toastFlag), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Error("program exited with error", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
