package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/apollo-chat/apollo/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Check configured tool-provider connections",
	Long: `Dial every enabled tool provider from configuration and report
its status and tool count.`,
	RunE: runMCPStatus,
}

func runMCPStatus(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, "")
	if err != nil {
		return err
	}
	defer a.close()

	if len(a.cfg.MCP) == 0 {
		fmt.Println("no tool providers configured")
		return nil
	}

	for name, mc := range a.cfg.MCP {
		if !mc.IsEnabled() {
			continue
		}
		// Synchronous connects so the status table below is complete.
		_ = a.manager.Connect(ctx, name, mcp.Config{
			Type:        mcp.TransportType(mc.Type),
			URL:         mc.URL,
			Headers:     mc.Headers,
			Command:     mc.Command,
			Environment: mc.Environment,
			TimeoutMS:   mc.TimeoutMS,
		})
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tTOOLS\tERROR")
	for _, st := range a.manager.Status() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", st.Name, st.Status, st.ToolCount, st.Error)
	}
	return w.Flush()
}
