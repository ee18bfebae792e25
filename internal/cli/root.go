// Package cli implements pixctl, the operator tool for inspecting Pix charges
// at the provider without going through a storefront.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/example/vitrine/internal/config"
	"github.com/example/vitrine/internal/gateway"
)

var (
	baseURL string
	token   string
	rootCmd *cobra.Command
)

// newGateway is swapped in tests.
var newGateway = func() gateway.Gateway {
	settings := config.LoadPushinPay()
	if baseURL != "" {
		settings.BaseURL = baseURL
	}
	if token != "" {
		settings.Token = token
	}
	return gateway.NewPushinPay(gateway.PushinPayConfig{
		BaseURL: settings.BaseURL,
		Token:   settings.Token,
		Timeout: settings.Timeout,
	})
}

func init() {
	rootCmd = &cobra.Command{
		Use:           "pixctl",
		Short:         "Create and inspect Pix charges",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Provider API base URL (default $PUSHINPAY_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Provider API token (default $PUSHINPAY_TOKEN)")
}

// Execute runs the root command
func Execute(version string) error {
	rootCmd.AddCommand(chargeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(hashPasswordCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd.Version = version
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
