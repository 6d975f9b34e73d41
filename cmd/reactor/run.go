package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/reactor/internal/config"
	"github.com/haasonsaas/reactor/internal/core/scheduler"
	"github.com/haasonsaas/reactor/internal/llm"
	"github.com/haasonsaas/reactor/pkg/models"
	"github.com/haasonsaas/reactor/pkg/reactor"
)

func buildRunCmd() *cobra.Command {
	var configPath string
	var key string
	var model string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an agent against stdin, printing streamed replies",
		Long: `Load options from --config, open the agent identified by --key (creating
it on first use), and feed each stdin line to sendMessage. Assistant reply
chunks and effect lifecycle events are printed to stdout as they arrive.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), configPath, key, model)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "reactor.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&key, "key", "", "Agent key (UUID); generated and printed if omitted")
	cmd.Flags().StringVar(&model, "model", "", "Anthropic model override")
	return cmd
}

func runRun(ctx context.Context, configPath, key, model string) error {
	opts, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required to run the reference think/speak adapter")
	}
	adapter, err := llm.NewAnthropicAdapter(llm.AnthropicConfig{APIKey: apiKey, Model: model})
	if err != nil {
		return fmt.Errorf("configure anthropic adapter: %w", err)
	}
	opts.Think = adapter
	opts.Speak = adapter

	if key == "" {
		return fmt.Errorf("--key is required")
	}

	agent, err := reactor.Open(key, opts)
	if err != nil {
		return fmt.Errorf("open agent %s: %w", key, err)
	}
	defer func() {
		if err := agent.Close(); err != nil {
			slog.Error("close agent", "error", err)
		}
	}()

	printed := make(map[string]bool)
	agent.Subscribe(scheduler.NewCallbackSink(func(_ context.Context, e scheduler.Event) {
		switch e.Type {
		case scheduler.EventStateUpdated:
			for _, m := range e.State.HistoryMessages {
				if m.Role != models.RoleAssistant || printed[m.ID] {
					continue
				}
				printed[m.ID] = true
				fmt.Printf("assistant: %s\n", m.Content)
			}
		case scheduler.EventEffectStarted:
			slog.Info("effect started", "kind", string(e.EffectKind), "key", string(e.EffectKey))
		case scheduler.EventEffectFailed:
			slog.Warn("effect failed", "kind", string(e.EffectKind), "key", string(e.EffectKey), "error", e.Err)
		}
	}))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "reactor: agent %s ready, reading messages from stdin\n", key)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		agent.SendMessage(line)

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
	return scanner.Err()
}
