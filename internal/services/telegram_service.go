package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/example/vitrine/internal/flows"
	"github.com/example/vitrine/internal/utils"
)

const telegramAPIURL = "https://api.telegram.org"

// TelegramService handles sending notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiURL      string
	client      *http.Client
	pending     sync.WaitGroup
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiURL:      telegramAPIURL,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiURL, s.botToken)

	msg := telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := s.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(text string) error {
	if s.adminChatID == "" {
		log.Println("[Telegram] Admin chat ID not configured")
		return nil
	}
	return s.SendMessage(s.adminChatID, text)
}

var flowLabels = map[flows.Kind]string{
	flows.KindChat:      "Chat",
	flows.KindPackages:  "Pacotes",
	flows.KindVideoCall: "Videochamada",
}

// PurchaseMessage renders the admin notification for a completed purchase.
func PurchaseMessage(p flows.Purchase) string {
	label := flowLabels[p.Flow]
	if label == "" {
		label = string(p.Flow)
	}

	message := fmt.Sprintf(`<b>✅ PAGAMENTO CONFIRMADO!</b>
<b>🛍 Item:</b> %s
<b>💰 Valor:</b> %s
<b>📍 Origem:</b> %s
<b>🧾 Cobrança:</b> <code>%s</code>
<b>🕒 Pago em:</b> %s
━━━━━━━━━━━━━━━━━━`,
		html.EscapeString(p.Description),
		utils.FormatBRL(p.Amount),
		label,
		html.EscapeString(p.ChargeID),
		p.PaidAt.Format("02/01/2006 15:04"),
	)
	return strings.TrimSpace(message)
}

// NotifyPurchase tells the admin chat about a paid purchase. The message is
// sent in the background and failures are only logged.
func (s *TelegramService) NotifyPurchase(p flows.Purchase) {
	if s.adminChatID == "" || s.botToken == "" {
		return
	}

	text := PurchaseMessage(p)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.SendToAdmin(text); err != nil {
			log.Printf("[Telegram] purchase %s not notified: %v", p.ChargeID, err)
		}
	}()
}

// Wait blocks until queued notifications are sent.
func (s *TelegramService) Wait() {
	s.pending.Wait()
}
