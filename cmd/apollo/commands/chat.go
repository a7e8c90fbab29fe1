package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/apollo-chat/apollo/internal/event"
	"github.com/apollo-chat/apollo/internal/stream"
)

var chatModel string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session on the terminal.

Configured tool providers are connected in the background; the session
picks up their tools as soon as each connection completes.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "Model to use (provider/model format)")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, chatModel)
	if err != nil {
		return err
	}
	defer a.close()

	unsub := a.bus.SubscribeAll(func(e event.Event) {
		switch data := e.Data.(type) {
		case event.MCPConnectedData:
			fmt.Fprintf(os.Stderr, "* connected to %s (%d tools)\n", data.Name, data.ToolCount)
		case event.MCPConnectErrorData:
			fmt.Fprintf(os.Stderr, "* failed to connect to %s: %s\n", data.Name, data.Error)
		case event.MCPDisconnectedData:
			fmt.Fprintf(os.Stderr, "* disconnected from %s\n", data.Name)
		}
	})
	defer unsub()

	a.connectProviders(ctx)

	sess := a.sessions.Create()
	sink := stream.NewWriterSink(os.Stdout)

	fmt.Printf("apollo %s - type a message, /tools to list tools, /quit to exit\n", Version)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/tools":
			printTools(a)
			continue
		}

		if _, err := a.sessions.ProcessTurn(ctx, sess.ID(), line, sink); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
			continue
		}
		fmt.Println()
	}
	return scanner.Err()
}

func printTools(a *app) {
	snapshot := a.cache.Snapshot()
	if len(snapshot) == 0 {
		fmt.Println("no tools available")
		return
	}
	for name, tools := range snapshot {
		fmt.Printf("%s:\n", name)
		for _, tool := range tools {
			fmt.Printf("  %s - %s\n", tool.Name, tool.Description)
		}
	}
}
