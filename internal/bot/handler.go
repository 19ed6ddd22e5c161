// Package bot wires the /status command to the portal fetcher.
package bot

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/telemyapp/brother-bot/internal/model"
	"github.com/telemyapp/brother-bot/internal/telegram"
)

const (
	MsgAccessDenied = "⛔ Access denied."
	MsgCollecting   = "⏳ Collecting data..."
	errorPrefix     = "❌ Error: "
)

type StatusFetcher interface {
	Fetch(ctx context.Context) (model.StatusReport, error)
}

type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text, parseMode string) error
}

// Command is one invocation of /status.
type Command struct {
	CallerID int64
	ChatID   int64
}

type StatusHandler struct {
	authorizedID int64
	fetcher      StatusFetcher
	sender       Sender
}

func NewStatusHandler(authorizedID int64, fetcher StatusFetcher, sender Sender) *StatusHandler {
	return &StatusHandler{authorizedID: authorizedID, fetcher: fetcher, sender: sender}
}

// HandleStatus answers a /status command. The returned error only reports
// reply delivery problems; fetch failures become a chat reply.
func (h *StatusHandler) HandleStatus(ctx context.Context, cmd Command) error {
	runID := uuid.NewString()
	if cmd.CallerID != h.authorizedID {
		log.Printf("event=status_denied run_id=%s caller_id=%d chat_id=%d", runID, cmd.CallerID, cmd.ChatID)
		return h.sender.SendMessage(ctx, cmd.ChatID, MsgAccessDenied, "")
	}

	if err := h.sender.SendMessage(ctx, cmd.ChatID, MsgCollecting, ""); err != nil {
		log.Printf("event=status_ack_failed run_id=%s err=%q", runID, err.Error())
	}

	start := time.Now()
	report, err := h.fetcher.Fetch(ctx)
	if err != nil {
		log.Printf("event=status_fetch status=error run_id=%s duration_ms=%d err=%q", runID, time.Since(start).Milliseconds(), err.Error())
		return h.sender.SendMessage(ctx, cmd.ChatID, errorPrefix+err.Error(), "")
	}
	log.Printf("event=status_fetch status=ok run_id=%s duration_ms=%d serial=%s", runID, time.Since(start).Milliseconds(), report.SerialNumber)
	return h.sender.SendMessage(ctx, cmd.ChatID, FormatReport(report), telegram.ParseModeMarkdown)
}

// ChatProgress forwards login progress to a fixed chat.
type ChatProgress struct {
	Sender Sender
	ChatID int64
}

func (p ChatProgress) Notify(ctx context.Context, text string) error {
	return p.Sender.SendMessage(ctx, p.ChatID, text, telegram.ParseModeMarkdown)
}
