package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/agentcore/agentcore/config"
	"github.com/agentcore/agentcore/controller"
	"github.com/agentcore/agentcore/event"
	"github.com/agentcore/agentcore/eventstream"
	"github.com/agentcore/agentcore/filestore"
	"github.com/agentcore/agentcore/session"
	"github.com/agentcore/agentcore/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one session to completion",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringP("file", "f", "", "read the task from this file instead of stdin")
	runCmd.Flags().String("sid", "", "session id (random if omitted)")
	runCmd.Flags().String("store-dir", "", "persist the session under this directory (in-memory if omitted)")
	runCmd.Flags().Int("max-iterations", 100, "iteration budget before the session pauses")
	runCmd.Flags().Bool("otel", false, "emit logs/metrics/traces through Clue and OpenTelemetry instead of staying silent")
}

// readTask mirrors the original's read_task_from_file/read_task_from_stdin
// pair: an explicit file wins, otherwise the task comes from stdin.
func readTask(path string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read task file: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(bufio.NewReader(os.Stdin))
	if err != nil {
		return "", fmt.Errorf("read task from stdin: %w", err)
	}
	return string(data), nil
}

func runRun(cmd *cobra.Command, _ []string) error {
	file, _ := cmd.Flags().GetString("file")
	sid, _ := cmd.Flags().GetString("sid")
	storeDir, _ := cmd.Flags().GetString("store-dir")
	maxIterations, _ := cmd.Flags().GetInt("max-iterations")
	useOtel, _ := cmd.Flags().GetBool("otel")

	task, err := readTask(file)
	if err != nil {
		return err
	}
	if sid == "" {
		sid = "main-" + uuid.NewString()
	}

	var store filestore.FileStore
	if storeDir != "" {
		zl := zerolog.New(os.Stderr).With().Timestamp().Logger()
		disk, err := filestore.NewLocalDisk(storeDir, zl)
		if err != nil {
			return fmt.Errorf("open local disk store: %w", err)
		}
		store = disk
	} else {
		store = filestore.NewMemory()
	}

	ctx := context.Background()
	stream, err := eventstream.Open(ctx, sid, store, telemetry.NoopLogger{})
	if err != nil {
		return fmt.Errorf("open event stream: %w", err)
	}

	cfg := config.Default(sid)
	cfg.MaxIterations = maxIterations
	cfg.TickInterval = 50 * time.Millisecond

	opts := []controller.Option{}
	if useOtel {
		opts = append(opts,
			controller.WithLogger(telemetry.NewClueLogger()),
			controller.WithMetrics(telemetry.NewClueMetrics()),
			controller.WithTracer(telemetry.NewClueTracer()),
		)
	}

	c, err := controller.New(ctx, &echoAgent{}, stream, cfg, nil, false, opts...)
	if err != nil {
		return fmt.Errorf("start controller: %w", err)
	}
	defer c.Close(ctx)

	if _, err := stream.Add(ctx, &event.MessageAction{Content: task}, event.SourceUser); err != nil {
		return fmt.Errorf("submit task: %w", err)
	}

	for {
		st := c.AgentState()
		if st.Terminal() || st == event.AgentStatePaused || st == event.AgentStateAwaitingUserInput {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	final := c.State()
	fmt.Fprintf(cmd.OutOrStdout(), "session %s finished in state %s after %d iteration(s)\n", sid, final.AgentState, final.Iteration)
	if final.LastError != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "last error: %s\n", final.LastError)
	}

	manifest := session.Manifest{
		APIVersion: "agentcore/v1",
		Kind:       "Session",
		Metadata:   session.Metadata{SID: sid, Agent: "echo"},
		Status: session.Status{
			AgentState: final.AgentState,
			Iteration:  final.Iteration,
			LastError:  final.LastError,
			Outputs:    final.Outputs,
		},
	}
	return session.Write(ctx, store, sid, manifest)
}
