package payment

import (
	"fmt"
	"time"
)

// NoticeKind classifies a transient message shown next to the charge.
type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeSuccess NoticeKind = "success"
	NoticeWarning NoticeKind = "warning"
	NoticeError   NoticeKind = "error"
)

// Notice is a payer-facing message. A zero ExpiresAt means it stays until the
// next action replaces or clears it.
type Notice struct {
	Kind      NoticeKind `json:"kind"`
	Text      string     `json:"text"`
	ExpiresAt time.Time  `json:"-"`
}

func (n Notice) activeAt(now time.Time) bool {
	if n.Text == "" {
		return false
	}
	return n.ExpiresAt.IsZero() || now.Before(n.ExpiresAt)
}

const (
	msgCopied          = "Chave Pix copiada! Cole no seu app de pagamento."
	msgCodeUnavailable = "Chave Pix não disponível"
	msgPaid            = "Pagamento confirmado! Redirecionando..."
	msgExpired         = "Este pagamento expirou. Gere um novo QR Code para continuar."
	msgTooSoon         = "Aguarde alguns segundos antes de verificar novamente."
	msgPending         = "Pagamento ainda não foi identificado. Aguarde um momento e tente novamente."
	msgCreationFailed  = "Erro ao processar pagamento"
	msgVerifyFailed    = "Erro ao verificar pagamento. Verifique sua conexão e tente novamente."
)

func msgStatus(status string) string {
	return fmt.Sprintf("Status atual: %s. Aguarde e tente novamente.", status)
}
