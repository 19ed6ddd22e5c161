package bot

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/telemyapp/brother-bot/internal/metrics"
	"github.com/telemyapp/brother-bot/internal/telegram"
)

const pollErrorPause = 3 * time.Second

type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
}

// Poller pulls updates and handles them one at a time on the calling
// goroutine, so commands never overlap.
type Poller struct {
	source      UpdateSource
	handler     *StatusHandler
	botUsername string
	pollTimeout time.Duration
	errorPause  time.Duration
	offset      int64
}

// NewPoller builds a poller. botUsername is the bot's own @name; a command
// addressed to any other bot is ignored, and with an empty botUsername only
// unaddressed commands are handled.
func NewPoller(source UpdateSource, handler *StatusHandler, pollTimeout time.Duration, botUsername string) *Poller {
	return &Poller{
		source:      source,
		handler:     handler,
		botUsername: strings.TrimPrefix(botUsername, "@"),
		pollTimeout: pollTimeout,
		errorPause:  pollErrorPause,
	}
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		updates, err := p.source.GetUpdates(ctx, p.offset, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("event=telegram_poll_failed err=%q", err.Error())
			metrics.Default().IncCounter("brotherbot_telegram_poll_errors_total", nil)
			if !sleepCtx(ctx, p.errorPause) {
				return
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= p.offset {
				p.offset = u.UpdateID + 1
			}
			p.dispatch(ctx, u)
		}
	}
}

func (p *Poller) dispatch(ctx context.Context, u telegram.Update) {
	if u.Message == nil {
		return
	}
	name, target, ok := parseCommand(u.Message.Text)
	if !ok || name != "status" {
		return
	}
	if target != "" && !strings.EqualFold(target, p.botUsername) {
		log.Printf("event=command_ignored update_id=%d target=%q", u.UpdateID, target)
		return
	}
	cmd := Command{ChatID: u.Message.Chat.ID}
	if u.Message.From != nil {
		cmd.CallerID = u.Message.From.ID
	}
	p.runOnce(ctx, name, func(c context.Context) error {
		return p.handler.HandleStatus(c, cmd)
	})
}

func (p *Poller) runOnce(ctx context.Context, name string, fn func(context.Context) error) {
	start := time.Now()
	err := fn(ctx)
	durMs := float64(time.Since(start).Milliseconds())
	labels := map[string]string{"command": name}
	if err != nil {
		log.Printf("metric=command_run name=%s status=error duration_ms=%d err=%q", name, int64(durMs), err.Error())
		labels["status"] = "error"
	} else {
		log.Printf("metric=command_run name=%s status=ok duration_ms=%d", name, int64(durMs))
		labels["status"] = "ok"
	}
	metrics.Default().IncCounter("brotherbot_command_runs_total", labels)
	metrics.Default().ObserveHistogram("brotherbot_command_duration_ms", durMs, map[string]string{"command": name})
}

// parseCommand accepts "/name", "/name@botname" and trailing arguments.
// target is the botname part, empty when the command is unaddressed.
func parseCommand(text string) (name, target string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", "", false
	}
	name, target, _ = strings.Cut(strings.TrimPrefix(fields[0], "/"), "@")
	if name == "" {
		return "", "", false
	}
	return strings.ToLower(name), target, true
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
