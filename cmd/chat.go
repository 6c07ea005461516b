package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/msgpilot/msgpilot/engine"
	"github.com/msgpilot/msgpilot/provider"
)

var chatMessage string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Send a single message to the assistant",
	Long: `Send one message to the assistant and print the reply. Tool calls the
model makes along the way are shown as they run.

Examples:
  msgpilot chat -m "what's on my schedule?"
  msgpilot chat -m "remind Sam about dinner at 7pm tomorrow"`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Message to send (required)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if chatMessage == "" {
		return fmt.Errorf("message is required (-m flag)")
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	history := []provider.Message{provider.UserMessage(chatMessage)}
	return a.engine.Run(context.Background(), history, func(ev engine.Event) {
		switch ev.Type {
		case engine.EventToolCall:
			fmt.Printf("[tool] %s %s\n", ev.Tool, ev.Args)
		case engine.EventMessage:
			fmt.Println(ev.Content)
		case engine.EventError:
			fmt.Println("error:", ev.Content)
		}
	})
}
