package main

import (
	"github.com/telemyapp/brother-bot/internal/config"
	"github.com/telemyapp/brother-bot/internal/credstore"
	"github.com/telemyapp/brother-bot/internal/portal"
	"github.com/telemyapp/brother-bot/internal/session"
)

type components struct {
	store    *credstore.FileStore
	acquirer *session.Acquirer
	fetcher  *portal.Fetcher
}

// buildComponents assembles the store, browser login and fetcher. The
// store is shared so the fetcher sees what the acquirer saves.
func buildComponents(cfg config.Config, browser session.Browser, progress session.Progress) components {
	store := credstore.New(cfg.TokenFile, cfg.CookieFile)
	acquirer := session.NewAcquirer(browser, store, progress, acquirerOptions(cfg))
	return components{
		store:    store,
		acquirer: acquirer,
		fetcher:  portal.NewFetcher(cfg.DeviceURL, store, acquirer),
	}
}

func acquirerOptions(cfg config.Config) session.Options {
	return session.Options{
		LoginURL:     cfg.LoginURL,
		Email:        cfg.PortalEmail,
		Password:     cfg.PortalPassword,
		TokenTimeout: cfg.TokenTimeout,
		FlowTimeout:  cfg.LoginTimeout,
	}
}

func newBrowser(cfg config.Config) session.Browser {
	return session.NewChromeBrowser(session.ChromeOptions{
		Headless: cfg.Headless,
		ExecPath: cfg.ChromePath,
	})
}
