package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/apollo-chat/apollo/internal/stream"
)

var (
	runModel     string
	runOutput    string
	runInputDir  string
	runOutputDir string
)

var runCmd = &cobra.Command{
	Use:   "run [prompt...]",
	Short: "Run a one-shot prompt or a batch of prompt files",
	Long: `Run a single prompt and print the completion, or process a
directory of prompt files in batch.

Examples:
  apollo run "Summarize the Model Context Protocol"
  apollo run -o answer.txt "Explain SSE"
  apollo run --input-dir prompts/ --output-dir answers/`,
	RunE: runOnce,
}

func init() {
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Model to use (provider/model format)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Write the completion to a file instead of stdout")
	runCmd.Flags().StringVar(&runInputDir, "input-dir", "", "Directory of prompt files to process in batch")
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "Directory for batch completions (defaults to input-dir)")
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, runModel)
	if err != nil {
		return err
	}
	defer a.close()

	if runInputDir != "" {
		return runBatch(ctx, a)
	}

	prompt := strings.Join(args, " ")
	if prompt == "" {
		return fmt.Errorf("prompt required. Usage: apollo run \"your prompt\"")
	}

	sess := a.sessions.Create()

	if runOutput != "" {
		content, err := a.sessions.ProcessTurn(ctx, sess.ID(), prompt)
		if err != nil {
			return err
		}
		return os.WriteFile(runOutput, []byte(content), 0o644)
	}

	sink := stream.NewWriterSink(os.Stdout)
	if _, err := a.sessions.ProcessTurn(ctx, sess.ID(), prompt, sink); err != nil {
		return err
	}
	fmt.Println()
	return nil
}

// runBatch completes every prompt file in the input directory, writing each
// answer next to its prompt as <name>.out.txt. Each prompt runs in a fresh
// session.
func runBatch(ctx context.Context, a *app) error {
	outDir := runOutputDir
	if outDir == "" {
		outDir = runInputDir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	entries, err := os.ReadDir(runInputDir)
	if err != nil {
		return err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".out.txt") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var failed int
	for _, name := range names {
		prompt, err := os.ReadFile(filepath.Join(runInputDir, name))
		if err != nil {
			return err
		}

		sess := a.sessions.Create()
		content, err := a.sessions.ProcessTurn(ctx, sess.ID(), string(prompt))
		a.sessions.End(sess.ID())
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
			failed++
			continue
		}

		base := strings.TrimSuffix(name, filepath.Ext(name))
		outPath := filepath.Join(outDir, base+".out.txt")
		if err := os.WriteFile(outPath, []byte(content), 0o644); err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", name, outPath)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d prompts failed", failed, len(names))
	}
	return nil
}
