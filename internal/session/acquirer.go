// Package session logs into the printer portal with a real browser and
// captures the bearer token the portal's front end sends to its API.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/telemyapp/brother-bot/internal/auth"
	"github.com/telemyapp/brother-bot/internal/metrics"
	"github.com/telemyapp/brother-bot/internal/model"
)

const (
	EmailSelector    = `input[type="email"]`
	PasswordSelector = `input[type="password"]`
	SubmitSelector   = `button[type="submit"]`

	msgLoggingIn = "🔐 *Logging in to Brother website...*"
	msgFailed    = "❌ *Failed to retrieve token.*"
	msgSaved     = "✅ *Token and cookies successfully retrieved and saved.*"
)

var ErrAuthentication = errors.New("failed to retrieve bearer token")

// Progress receives human-readable status lines while a login runs.
type Progress interface {
	Notify(ctx context.Context, text string) error
}

type CredentialSaver interface {
	Save(model.Credentials) error
}

type Options struct {
	LoginURL     string
	Email        string
	Password     string
	TokenTimeout time.Duration
	FlowTimeout  time.Duration
}

type Acquirer struct {
	browser  Browser
	store    CredentialSaver
	progress Progress
	opts     Options
}

func NewAcquirer(browser Browser, store CredentialSaver, progress Progress, opts Options) *Acquirer {
	if opts.TokenTimeout <= 0 {
		opts.TokenTimeout = 30 * time.Second
	}
	if opts.FlowTimeout <= 0 {
		opts.FlowTimeout = 90 * time.Second
	}
	if progress == nil {
		progress = LogProgress{}
	}
	return &Acquirer{browser: browser, store: store, progress: progress, opts: opts}
}

// Acquire runs the interactive login and persists the captured credentials.
// Nothing is saved unless a bearer token was observed.
func (a *Acquirer) Acquire(ctx context.Context) (model.Credentials, error) {
	start := time.Now()
	a.notify(ctx, msgLoggingIn)

	creds, err := a.login(ctx)
	if err == nil {
		err = a.store.Save(creds)
		if err != nil {
			err = fmt.Errorf("save credentials: %w", err)
		}
	}

	durMS := float64(time.Since(start).Milliseconds())
	if err != nil {
		log.Printf("event=session_acquire status=error duration_ms=%d err=%q", int64(durMS), err.Error())
		metrics.Default().Observe("brotherbot_session_acquire_total", "brotherbot_session_acquire_latency_ms", durMS, map[string]string{"status": "error"})
		a.notify(ctx, msgFailed)
		return model.Credentials{}, err
	}
	log.Printf("event=session_acquire status=ok duration_ms=%d cookie_len=%d %s", int64(durMS), len(creds.CookieHeader), auth.LogFields(creds.BearerToken))
	metrics.Default().Observe("brotherbot_session_acquire_total", "brotherbot_session_acquire_latency_ms", durMS, map[string]string{"status": "ok"})
	a.notify(ctx, msgSaved)
	return creds, nil
}

func (a *Acquirer) login(ctx context.Context) (model.Credentials, error) {
	flowCtx, cancel := context.WithTimeout(ctx, a.opts.FlowTimeout)
	defer cancel()

	page, err := a.browser.Open(flowCtx)
	if err != nil {
		return model.Credentials{}, fmt.Errorf("open browser: %w", err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			log.Printf("event=session_browser_close_failed err=%q", closeErr.Error())
		}
	}()

	tokenCh := make(chan string, 1)
	page.OnRequest(func(headers map[string]string) {
		tok, ok := auth.BearerToken(headers["authorization"])
		if !ok {
			return
		}
		select {
		case tokenCh <- tok:
		default:
		}
	})

	if err := page.Navigate(a.opts.LoginURL); err != nil {
		return model.Credentials{}, fmt.Errorf("open login page: %w", err)
	}
	if err := page.Fill(EmailSelector, a.opts.Email); err != nil {
		return model.Credentials{}, fmt.Errorf("fill email: %w", err)
	}
	if err := page.Fill(PasswordSelector, a.opts.Password); err != nil {
		return model.Credentials{}, fmt.Errorf("fill password: %w", err)
	}
	if err := page.Click(SubmitSelector); err != nil {
		return model.Credentials{}, fmt.Errorf("submit login: %w", err)
	}

	token, err := waitForToken(flowCtx, tokenCh, a.opts.TokenTimeout)
	if err != nil {
		return model.Credentials{}, err
	}

	cookies, err := page.Cookies()
	if err != nil {
		return model.Credentials{}, fmt.Errorf("read cookies: %w", err)
	}
	return model.Credentials{BearerToken: token, CookieHeader: CookieHeader(cookies)}, nil
}

func waitForToken(ctx context.Context, tokenCh <-chan string, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case tok := <-tokenCh:
		return tok, nil
	case <-timer.C:
		return "", fmt.Errorf("%w: no authorized request within %s", ErrAuthentication, timeout)
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrAuthentication, ctx.Err())
	}
}

func (a *Acquirer) notify(ctx context.Context, text string) {
	if err := a.progress.Notify(ctx, text); err != nil {
		log.Printf("event=session_progress_failed err=%q", err.Error())
	}
}

// LogProgress writes progress lines to the process log.
type LogProgress struct{}

func (LogProgress) Notify(_ context.Context, text string) error {
	log.Printf("event=session_progress text=%q", text)
	return nil
}
