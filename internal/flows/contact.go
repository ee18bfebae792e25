package flows

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/vitrine/internal/utils"
)

// whatsAppLink builds a click-to-chat link with a prefilled message.
func whatsAppLink(phone, message string) string {
	phone = strings.TrimPrefix(strings.TrimSpace(phone), "+")
	if phone == "" {
		return ""
	}
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return fmt.Sprintf("https://api.whatsapp.com/send/?phone=%s&text=%s&type=phone_number&app_absent=0",
		url.QueryEscape(phone), text)
}

func packageMessage(name string) string {
	return fmt.Sprintf("Olá! Acabei de fazer o pagamento do *%s*. Aguardo receber meu conteúdo! 💕", name)
}

func callMessage(minutes int, amount decimal.Decimal) string {
	return fmt.Sprintf("Olá! Acabei de fazer o pagamento via Pix para vídeo chamada de %d minutos (%s). Quando podemos conversar?",
		minutes, utils.FormatBRL(amount))
}
