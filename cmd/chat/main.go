// PromoReels chat - terminal client for the agent backend
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/akrtake/PromoReels/internal/agentapi"
	"github.com/akrtake/PromoReels/internal/chat"
)

func main() {
	var (
		serverURL string
		agentName string
		token     string
		userID    string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the PromoReels agent from a terminal",
		Long: `Opens (or resumes) a conversation session against the agent backend and
streams replies to stdout. The session credential is passed as a bearer
token, exactly as the browser app does after /api/checkSession.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("PROMOREELS_TOKEN")
			}
			if token == "" || userID == "" {
				return fmt.Errorf("a session token (--token or PROMOREELS_TOKEN) and --user are required")
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelWarn,
			}))

			client := agentapi.NewClient(serverURL, agentName, 0, logger)
			nav := &chat.MemoryNav{}
			if sessionID != "" {
				nav.SetSessionID(sessionID)
			}

			ctrl := chat.NewController(client, nav, logger)
			if err := ctrl.Initialize(cmd.Context(), userID, token); err != nil {
				return fmt.Errorf("initialize session: %w", err)
			}
			fmt.Printf("session %s\n", ctrl.SessionID())
			printHistory(ctrl.History(), 0)

			scanner := bufio.NewScanner(os.Stdin)
			fmt.Print("> ")
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "/quit" {
					return nil
				}
				before := len(ctrl.History())
				if err := ctrl.Send(cmd.Context(), line); err != nil {
					fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
				}
				printHistory(ctrl.History(), before)
				fmt.Print("> ")
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "agent backend or BFF base URL")
	cmd.Flags().StringVar(&agentName, "agent", "movie_maker_agent", "agent application name")
	cmd.Flags().StringVar(&token, "token", "", "session credential (bearer token)")
	cmd.Flags().StringVar(&userID, "user", "", "user id matching the credential")
	cmd.Flags().StringVar(&sessionID, "session", "", "existing session id to resume")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printHistory(history []chat.Message, from int) {
	for _, msg := range history[from:] {
		who := msg.Role
		if msg.Author != "" {
			who = msg.Author
		}
		if msg.Pending {
			fmt.Printf("[%s] ...\n", who)
			continue
		}
		fmt.Printf("[%s] %s\n", who, msg.Text)
	}
}
