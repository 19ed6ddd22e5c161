package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

type ChromeOptions struct {
	Headless bool
	ExecPath string
}

// ChromeBrowser drives a local Chrome/Chromium through the DevTools protocol.
// Every Open starts a fresh process with a throwaway profile.
type ChromeBrowser struct {
	opts ChromeOptions
}

func NewChromeBrowser(opts ChromeOptions) *ChromeBrowser {
	return &ChromeBrowser{opts: opts}
}

func (b *ChromeBrowser) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", b.opts.Headless))
	if b.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.opts.ExecPath))
	}
	return opts
}

func (b *ChromeBrowser) Open(ctx context.Context) (Page, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, b.allocatorOptions()...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	p := &chromePage{
		ctx: tabCtx,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
	}

	chromedp.ListenTarget(tabCtx, p.handleEvent)
	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		p.cancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return p, nil
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	observers []RequestObserver
}

func (p *chromePage) OnRequest(fn RequestObserver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// The Authorization header set by page scripts shows up on
// requestWillBeSent; headers added by the network stack only arrive in
// the ExtraInfo event, so both are watched.
func (p *chromePage) handleEvent(ev any) {
	var headers network.Headers
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		if e.Request != nil {
			headers = e.Request.Headers
		}
	case *network.EventRequestWillBeSentExtraInfo:
		headers = e.Headers
	default:
		return
	}
	if len(headers) == 0 {
		return
	}
	flat := flattenHeaders(headers)

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, fn := range p.observers {
		fn(flat)
	}
}

func flattenHeaders(h network.Headers) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		out[strings.ToLower(k)] = s
	}
	return out
}

func (p *chromePage) Navigate(url string) error {
	return chromedp.Run(p.ctx, chromedp.Navigate(url))
}

func (p *chromePage) Fill(selector, value string) error {
	return chromedp.Run(p.ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (p *chromePage) Click(selector string) error {
	return chromedp.Run(p.ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
}

// Cookies returns every cookie in the browser context, not only those
// scoped to the current URL.
func (p *chromePage) Cookies() ([]Cookie, error) {
	var raw []*network.Cookie
	err := chromedp.Run(p.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	out := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		out = append(out, Cookie{Name: c.Name, Value: c.Value})
	}
	return out, nil
}

func (p *chromePage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	return err
}
