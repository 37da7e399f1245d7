package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lessonmate/lessonmate/internal/config"
	"github.com/lessonmate/lessonmate/internal/dependency"
	"github.com/lessonmate/lessonmate/internal/router"
)

var (
	chatMessage string
	chatSession string
	chatVerbose bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send a single message and exit")
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "cli:direct", "Session ID")
	chatCmd.Flags().BoolVarP(&chatVerbose, "verbose", "v", false, "Show routing details")
}

var exitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

func runChat(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := dependency.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer stopBridges(container)

	rt := container.Router()
	if chatMessage != "" {
		return runSingleMessage(ctx, rt, chatMessage)
	}
	return runInteractive(ctx, rt)
}

// runSingleMessage handles one turn and prints the answer.
func runSingleMessage(ctx context.Context, rt *router.Router, text string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	fmt.Fprintln(os.Stderr, "  ↳ thinking...")
	result, err := rt.HandleTurn(ctx, chatSession, text)
	if err != nil {
		return err
	}
	printRouting(result)
	printAnswer(result.Answer)
	return nil
}

// runInteractive reads lines from stdin and handles each as a turn.
func runInteractive(ctx context.Context, rt *router.Router) error {
	fmt.Printf("%s Interactive mode (type 'exit' or Ctrl+C to quit)\n\n", logo)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			fmt.Println("\nGoodbye!")
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exitCommands[strings.ToLower(line)] {
			fmt.Println("Goodbye!")
			return nil
		}

		result, err := rt.HandleTurn(ctx, chatSession, line)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		printRouting(result)
		printAnswer(result.Answer)
	}
}

func printRouting(result router.TurnResult) {
	if !chatVerbose {
		return
	}
	c := result.Classification
	fmt.Fprintf(os.Stderr, "  ↳ %s (%.2f) %s\n", c.Category, c.Confidence, c.Mission)
}

func printAnswer(text string) {
	fmt.Printf("\n%s lessonmate\n%s\n\n", logo, text)
}

func stopBridges(container *dependency.Container) {
	for _, b := range container.Bridges() {
		b.Stop()
	}
}
