package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/flowforge/dataflow/engine"
	"github.com/flowforge/dataflow/engine/message"
	"github.com/flowforge/dataflow/pkg/config"
	"github.com/flowforge/dataflow/pkg/logger"
)

func newRunCmd() *cobra.Command {
	var workflowsDir string
	var messagePath string
	var withTrace bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compile a workflow directory and process one message through it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), runOptions{
				workflowsDir: workflowsDir,
				messagePath:  messagePath,
				withTrace:    withTrace,
				watch:        watch,
			})
		},
	}

	cmd.Flags().StringVar(&workflowsDir, "workflows", "./workflows", "Directory of workflow definition files (.json/.yaml/.yml)")
	cmd.Flags().StringVar(&messagePath, "message", "", "Path to the message (or bare payload) JSON file to process")
	cmd.Flags().BoolVar(&withTrace, "trace", false, "Process with a step-by-step execution trace")
	cmd.Flags().BoolVar(&watch, "watch", false, "Hot-reload the workflow directory and keep running until interrupted (at most 24 hours)")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

type runOptions struct {
	workflowsDir string
	messagePath  string
	withTrace    bool
	watch        bool
}

func runOnce(ctx context.Context, opts runOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.Log.Level),
		Output:     os.Stdout,
		JSON:       cfg.Log.JSON,
		TimeFormat: "15:04:05",
	})
	ctx = logger.ContextWithLogger(ctx, log)

	afs := afero.NewOsFs()
	configs, err := engine.LoadWorkflowDir(afs, opts.workflowsDir)
	if err != nil {
		return fmt.Errorf("failed to load workflows from %q: %w", opts.workflowsDir, err)
	}

	engineOpts := []engine.Option{engine.WithLogger(log)}
	if opts.watch {
		engineOpts = append(engineOpts, engine.WithReload(afs, opts.workflowsDir, 0))
	}

	eng, err := engine.New(ctx, configs, nil, engineOpts...)
	if err != nil {
		return fmt.Errorf("failed to construct engine: %w", err)
	}
	defer func() { _ = eng.Close() }()
	log.Info("engine compiled", "workflows", eng.WorkflowCount())

	msg, err := loadMessage(opts.messagePath)
	if err != nil {
		return fmt.Errorf("failed to load message from %q: %w", opts.messagePath, err)
	}

	if opts.withTrace {
		tr, err := eng.ProcessWithTrace(ctx, msg)
		if err != nil {
			return printAndReturn(msg, err)
		}
		if err := printJSON(map[string]any{"message": msg, "trace": tr}); err != nil {
			return err
		}
	} else {
		if err := eng.Process(ctx, msg); err != nil {
			return printAndReturn(msg, err)
		}
		if err := printJSON(msg); err != nil {
			return err
		}
	}

	if opts.watch {
		log.Info("watching for workflow changes; press ctrl-c to stop")
		return waitForSignal(ctx)
	}
	return nil
}

// loadMessage reads raw from path. If it already carries the message
// wire shape (spec.md §6: an "id"/"payload"/"context" envelope) it is
// restored with its audit trail and errors; otherwise the whole file is
// treated as a bare payload and wrapped in a fresh Message.
func loadMessage(path string) (*message.Message, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var probe map[string]any
	if err := json.Unmarshal(raw, &probe); err == nil {
		if _, hasPayload := probe["payload"]; hasPayload {
			if _, hasContext := probe["context"]; hasContext {
				return message.FromJSON(raw)
			}
		}
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("invalid message json: %w", err)
	}
	return message.New(payload)
}

func printAndReturn(msg *message.Message, procErr error) error {
	_ = printJSON(msg)
	return procErr
}

func printJSON(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(raw))
	return nil
}

func waitForSignal(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		return nil
	case <-ctx.Done():
		return nil
	case <-time.After(24 * time.Hour):
		return nil
	}
}
