package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var scheduledCmd = &cobra.Command{
	Use:   "scheduled",
	Short: "Inspect and manage scheduled messages",
}

var scheduledListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending scheduled messages, soonest first",
	RunE:  runScheduledList,
}

var scheduledCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a pending scheduled message",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduledCancel,
}

func init() {
	scheduledCmd.AddCommand(scheduledListCmd)
	scheduledCmd.AddCommand(scheduledCancelCmd)
	rootCmd.AddCommand(scheduledCmd)
}

func runScheduledList(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	pending, err := a.deliveries.ListPending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("No pending scheduled messages.")
		return nil
	}
	for _, rec := range pending {
		name := rec.RecipientName
		if name == "" {
			name = rec.RecipientID
		}
		fmt.Printf("%s  %s  %s  %q\n", rec.ID, rec.SendAt.Format(time.RFC3339), name, rec.Text)
	}
	return nil
}

func runScheduledCancel(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	id := args[0]
	if err := a.deliveries.Cancel(id); err != nil {
		return err
	}
	fmt.Println("Cancelled:", id)
	return nil
}
