// Package portal reads device usage from the printer subscription portal.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"gopkg.in/resty.v1"

	"github.com/telemyapp/brother-bot/internal/auth"
	"github.com/telemyapp/brother-bot/internal/metrics"
	"github.com/telemyapp/brother-bot/internal/model"
)

var ErrNoDevices = errors.New("no devices found in account")

const maxErrorBody = 256

type CredentialStore interface {
	Load() (model.Credentials, error)
	Clear() error
}

type Acquirer interface {
	Acquire(ctx context.Context) (model.Credentials, error)
}

type Fetcher struct {
	client    *resty.Client
	deviceURL string
	store     CredentialStore
	acquirer  Acquirer
	state     atomic.Value
}

func NewFetcher(deviceURL string, store CredentialStore, acquirer Acquirer) *Fetcher {
	f := &Fetcher{
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("Accept", "application/json"),
		deviceURL: deviceURL,
		store:     store,
		acquirer:  acquirer,
	}
	f.state.Store(model.NoValidCredentials)
	return f
}

func (f *Fetcher) State() model.CredentialState {
	return f.state.Load().(model.CredentialState)
}

// Fetch returns the first device's usage. A 401 costs one re-login and one
// retry; a second 401 is returned as a *RemoteError. A cached pair only
// counts as valid once the portal has answered it with a 2xx.
func (f *Fetcher) Fetch(ctx context.Context) (model.StatusReport, error) {
	creds, err := f.credentials(ctx)
	if err != nil {
		return model.StatusReport{}, err
	}

	resp, err := f.getDeviceList(ctx, creds)
	if err != nil {
		return model.StatusReport{}, err
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		log.Printf("event=portal_unauthorized action=reauth %s", auth.LogFields(creds.BearerToken))
		f.invalidate()
		creds, err = f.reacquire(ctx, "unauthorized")
		if err != nil {
			return model.StatusReport{}, err
		}
		resp, err = f.getDeviceList(ctx, creds)
		if err != nil {
			return model.StatusReport{}, err
		}
		if resp.StatusCode() == http.StatusUnauthorized {
			f.setState(model.NoValidCredentials)
		}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return model.StatusReport{}, &RemoteError{StatusCode: resp.StatusCode(), Body: truncate(string(resp.Body()), maxErrorBody)}
	}
	f.setState(model.HasValidCredentials)
	return decodeReport(resp.Body())
}

// credentials returns the cached pair, logging in first when the store has
// nothing usable.
func (f *Fetcher) credentials(ctx context.Context) (model.Credentials, error) {
	creds, err := f.store.Load()
	if err == nil {
		return creds, nil
	}
	log.Printf("event=portal_no_cached_credentials reason=%q", err.Error())
	f.setState(model.NoValidCredentials)
	return f.reacquire(ctx, "missing")
}

// invalidate moves HAS_VALID_CREDENTIALS to NO_VALID_CREDENTIALS.
func (f *Fetcher) invalidate() {
	f.setState(model.NoValidCredentials)
	if err := f.store.Clear(); err != nil {
		log.Printf("event=portal_clear_credentials_failed err=%q", err.Error())
	}
}

// reacquire moves NO_VALID_CREDENTIALS to HAS_VALID_CREDENTIALS.
func (f *Fetcher) reacquire(ctx context.Context, trigger string) (model.Credentials, error) {
	creds, err := f.acquirer.Acquire(ctx)
	if err != nil {
		metrics.Default().IncCounter("brotherbot_reauth_total", map[string]string{"trigger": trigger, "status": "error"})
		return model.Credentials{}, fmt.Errorf("portal login: %w", err)
	}
	metrics.Default().IncCounter("brotherbot_reauth_total", map[string]string{"trigger": trigger, "status": "ok"})
	f.setState(model.HasValidCredentials)
	return creds, nil
}

func (f *Fetcher) setState(s model.CredentialState) {
	f.state.Store(s)
}

func (f *Fetcher) getDeviceList(ctx context.Context, creds model.Credentials) (*resty.Response, error) {
	start := time.Now()
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+creds.BearerToken).
		SetHeader("Cookie", creds.CookieHeader).
		Get(f.deviceURL)
	durMS := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.Default().Observe("brotherbot_portal_requests_total", "brotherbot_portal_request_latency_ms", durMS, map[string]string{"status": "transport_error"})
		log.Printf("metric=portal_request_latency_ms status=transport_error value=%d err=%q", int64(durMS), err.Error())
		return nil, fmt.Errorf("device list request: %w", err)
	}
	status := strconv.Itoa(resp.StatusCode())
	metrics.Default().Observe("brotherbot_portal_requests_total", "brotherbot_portal_request_latency_ms", durMS, map[string]string{"status": status})
	log.Printf("metric=portal_request_latency_ms status=%s value=%d", status, int64(durMS))
	return resp, nil
}

func decodeReport(body []byte) (model.StatusReport, error) {
	var out deviceListResponse
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&out); err != nil {
		return model.StatusReport{}, fmt.Errorf("decode device list: %w", err)
	}
	for _, group := range out.DeviceGroupViewModels {
		if len(group.Devices) == 0 {
			continue
		}
		d := group.Devices[0]
		usage := d.Service.CurrentUsage
		return model.StatusReport{
			Model:         d.Model,
			SerialNumber:  d.SerialNumber,
			CycleStart:    usage.UsageCycleStartDate,
			CycleEnd:      usage.UsageCycleEndDate,
			PlanPages:     d.Service.CurrentPlan.PlanPages.String(),
			RolloverPages: usage.GivenRolloverPages.String(),
			PrintedPages:  usage.PrintedTotalPages.String(),
		}, nil
	}
	return model.StatusReport{}, ErrNoDevices
}

// truncate shortens s to at most n bytes without splitting a character.
// Invalid UTF-8 in the body is replaced so the result is safe to send as
// chat text.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
