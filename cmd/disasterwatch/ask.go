package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"disasterwatch/internal/client"
	"disasterwatch/internal/tui"
)

var (
	serverURL string
	askK      int
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a running server; opens the interactive client without a question",
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8000", "Base URL of the disasterwatch server")
	askCmd.Flags().IntVar(&askK, "k", 0, "Number of documents to retrieve (server default when 0)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	c := client.New(serverURL, 0)

	if len(args) > 0 {
		ctx, cancel := context.WithTimeout(cmd.Context(), 90*time.Second)
		defer cancel()
		ans, err := c.Ask(ctx, strings.Join(args, " "), askK)
		if err != nil {
			return err
		}
		fmt.Println(ans.Text)
		for i, s := range ans.Sources {
			fmt.Printf("\n[%d] %s\n", i+1, s)
		}
		return nil
	}

	if err := c.Health(cmd.Context()); err != nil {
		return fmt.Errorf("server %s not reachable: %w", serverURL, err)
	}
	_, err := tea.NewProgram(tui.New(c, serverURL, askK), tea.WithAltScreen()).Run()
	return err
}
