package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/example/vitrine/internal/gateway"
	"github.com/example/vitrine/internal/utils"
)

var chargeCmd = &cobra.Command{
	Use:   "charge <amount>",
	Short: "Create a Pix charge, e.g. pixctl charge 9,90",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(args[0])
		if err != nil {
			return err
		}
		qrOut, _ := cmd.Flags().GetString("qr-out")
		return runCharge(cmd, newGateway(), amount, qrOut)
	},
}

func init() {
	chargeCmd.Flags().String("qr-out", "", "Write the charge QR code as PNG to this file")
}

var statusCmd = &cobra.Command{
	Use:   "status <charge-id>",
	Short: "Show the provider status of a charge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := newGateway().GetChargeStatus(cmd.Context(), args[0])
		if err != nil {
			return describe(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), status)
		return nil
	},
}

// parseAmount accepts both "9.90" and the Brazilian "9,90".
func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "R$"))
	if strings.Contains(raw, ",") {
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q", raw)
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func runCharge(cmd *cobra.Command, gw gateway.Gateway, amount decimal.Decimal, qrOut string) error {
	charge, err := gw.CreateCharge(cmd.Context(), amount)
	if err != nil {
		return describe(err)
	}
	printCharge(cmd.OutOrStdout(), charge)
	if qrOut == "" {
		return nil
	}
	png, err := chargePNG(charge)
	if err != nil {
		return fmt.Errorf("qr code: %w", err)
	}
	if err := os.WriteFile(qrOut, png, 0o644); err != nil {
		return fmt.Errorf("write qr code: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "QR:     written to %s\n", qrOut)
	return nil
}

// chargePNG uses the provider's image when it decodes, otherwise renders the code.
func chargePNG(charge *gateway.Charge) ([]byte, error) {
	if data, _, err := utils.DecodeImage(charge.EncodedImage); err == nil {
		return data, nil
	}
	return utils.RenderQRCode(charge.Code)
}

func printCharge(w io.Writer, charge *gateway.Charge) {
	fmt.Fprintf(w, "ID:     %s\n", charge.ID)
	fmt.Fprintf(w, "Amount: %s\n", utils.FormatBRL(charge.Amount))
	fmt.Fprintf(w, "Code:   %s\n", charge.Code)
	if charge.EncodedImage != "" {
		fmt.Fprintln(w, "QR:     image available")
	}
}

// describe prefers the provider's own message over the transport error.
func describe(err error) error {
	if msg := gateway.UserMessage(err); msg != "" {
		return fmt.Errorf("%s (%w)", msg, err)
	}
	return err
}
