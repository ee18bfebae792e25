package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/vitrine/internal/gateway"
)

var errWatchExhausted = errors.New("charge still open after the last attempt")

var watchCmd = &cobra.Command{
	Use:   "watch <charge-id>",
	Short: "Poll a charge until it is paid, expired or cancelled",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		maxAttempts, _ := cmd.Flags().GetInt("max")
		_, err := watch(cmd.Context(), newGateway(), cmd.OutOrStdout(), args[0], interval, maxAttempts)
		return err
	},
}

func init() {
	watchCmd.Flags().Duration("interval", 5*time.Second, "Time between status checks")
	watchCmd.Flags().Int("max", 60, "Maximum number of status checks")
}

// watch checks the charge until it reaches a terminal status. Temporary
// provider failures are reported and retried; anything else stops the watch.
func watch(ctx context.Context, gw gateway.Gateway, out io.Writer, id string, interval time.Duration, maxAttempts int) (gateway.Status, error) {
	if interval <= 0 {
		interval = time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var last gateway.Status
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, err := gw.GetChargeStatus(ctx, id)
		switch {
		case err == nil:
			last = status
			fmt.Fprintf(out, "[%d/%d] %s\n", attempt, maxAttempts, status)
			if status.Terminal() {
				return status, nil
			}
		case gateway.Temporary(err):
			fmt.Fprintf(out, "[%d/%d] temporary failure: %v\n", attempt, maxAttempts, err)
		default:
			return last, describe(err)
		}

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(interval):
		}
	}
	return last, errWatchExhausted
}
