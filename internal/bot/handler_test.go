package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemyapp/brother-bot/internal/metrics"
	"github.com/telemyapp/brother-bot/internal/model"
	"github.com/telemyapp/brother-bot/internal/telegram"
)

const authorizedID = 123456789

type sentMessage struct {
	ChatID    int64
	Text      string
	ParseMode string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *recordingSender) SendMessage(_ context.Context, chatID int64, text, parseMode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{ChatID: chatID, Text: text, ParseMode: parseMode})
	return s.err
}

type mockFetcher struct {
	fetchFn func(context.Context) (model.StatusReport, error)
	calls   int
}

func (m *mockFetcher) Fetch(ctx context.Context) (model.StatusReport, error) {
	m.calls++
	if m.fetchFn != nil {
		return m.fetchFn(ctx)
	}
	return sampleReport(), nil
}

func sampleReport() model.StatusReport {
	return model.StatusReport{
		Model:         "MFC-J4335DW",
		SerialNumber:  "E81234567",
		CycleStart:    "2024-05-01",
		CycleEnd:      "2024-05-31",
		PlanPages:     "500",
		RolloverPages: "35",
		PrintedPages:  "120",
	}
}

func TestHandleStatus_UnauthorizedCallerIsDeniedWithoutFetching(t *testing.T) {
	fetcher := &mockFetcher{}
	sender := &recordingSender{}
	h := NewStatusHandler(authorizedID, fetcher, sender)

	require.NoError(t, h.HandleStatus(context.Background(), Command{CallerID: 42, ChatID: 42}))

	assert.Equal(t, 0, fetcher.calls)
	assert.Equal(t, []sentMessage{{ChatID: 42, Text: MsgAccessDenied}}, sender.sent)
}

func TestHandleStatus_MissingCallerIsDenied(t *testing.T) {
	fetcher := &mockFetcher{}
	sender := &recordingSender{}

	require.NoError(t, NewStatusHandler(authorizedID, fetcher, sender).HandleStatus(context.Background(), Command{ChatID: 9}))
	assert.Equal(t, 0, fetcher.calls)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, MsgAccessDenied, sender.sent[0].Text)
}

func TestHandleStatus_AcknowledgesThenReports(t *testing.T) {
	fetcher := &mockFetcher{}
	sender := &recordingSender{}
	h := NewStatusHandler(authorizedID, fetcher, sender)

	require.NoError(t, h.HandleStatus(context.Background(), Command{CallerID: authorizedID, ChatID: authorizedID}))

	require.Len(t, sender.sent, 2)
	assert.Equal(t, sentMessage{ChatID: authorizedID, Text: MsgCollecting}, sender.sent[0])
	report := sender.sent[1]
	assert.Equal(t, telegram.ParseModeMarkdown, report.ParseMode)
	for _, want := range []string{
		"*Printer:* MFC-J4335DW (E81234567)",
		"*Period:* 2024-05-01 → 2024-05-31",
		"Plan limit:* 500 pages",
		"Rollover:* 35 pages",
		"Printed:* 120 pages",
	} {
		assert.Contains(t, report.Text, want)
	}
}

func TestHandleStatus_FetchErrorBecomesReply(t *testing.T) {
	fetcher := &mockFetcher{fetchFn: func(context.Context) (model.StatusReport, error) {
		return model.StatusReport{}, errors.New("device list returned status 503")
	}}
	sender := &recordingSender{}

	err := NewStatusHandler(authorizedID, fetcher, sender).HandleStatus(context.Background(), Command{CallerID: authorizedID, ChatID: 1})
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "❌ Error: device list returned status 503", sender.sent[1].Text)
	assert.Empty(t, sender.sent[1].ParseMode)
}

func TestFormatReport(t *testing.T) {
	want := "📠 *Printer:* MFC-J4335DW (E81234567)\n" +
		"📅 *Period:* 2024-05-01 → 2024-05-31\n" +
		"✅ *Plan limit:* 500 pages\n" +
		"🔁 *Rollover:* 35 pages\n" +
		"🖨️ *Printed:* 120 pages"
	assert.Equal(t, want, FormatReport(sampleReport()))
}

func TestFormatReport_EscapesPortalValues(t *testing.T) {
	r := sampleReport()
	r.Model = "MFC_J*1"
	r.SerialNumber = "[E8`1]"

	got := FormatReport(r)
	assert.Contains(t, got, "📠 *Printer:* MFC\\_J\\*1 (\\[E8\\`1])\n")
	assert.Contains(t, got, "✅ *Plan limit:* 500 pages")
}

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "MFC-J4335DW", want: "MFC-J4335DW"},
		{in: "a_b", want: "a\\_b"},
		{in: "**", want: "\\*\\*"},
		{in: "`x`", want: "\\`x\\`"},
		{in: "[link](x)", want: "\\[link](x)"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeMarkdown(tt.in), tt.in)
	}
}

func TestChatProgress(t *testing.T) {
	sender := &recordingSender{}
	require.NoError(t, ChatProgress{Sender: sender, ChatID: authorizedID}.Notify(context.Background(), "🔐 *Logging in*"))
	assert.Equal(t, []sentMessage{{ChatID: authorizedID, Text: "🔐 *Logging in*", ParseMode: telegram.ParseModeMarkdown}}, sender.sent)
}

type scriptedSource struct {
	mu      sync.Mutex
	batches [][]telegram.Update
	errs    []error
	offsets []int64
	cancel  context.CancelFunc
}

func (s *scriptedSource) GetUpdates(_ context.Context, offset int64, _ time.Duration) ([]telegram.Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets = append(s.offsets, offset)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(s.batches) == 0 {
		s.cancel()
		return nil, nil
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

func statusUpdate(id, from int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: id,
		Message: &telegram.Message{
			From: &telegram.User{ID: from},
			Chat: telegram.Chat{ID: from},
			Text: text,
		},
	}
}

func TestPollerRun_DispatchesStatusInOrderAndAdvancesOffset(t *testing.T) {
	metrics.ResetDefaultForTest()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &scriptedSource{
		cancel: cancel,
		errs:   []error{errors.New("bad gateway")},
		batches: [][]telegram.Update{
			{statusUpdate(5, authorizedID, "/status"), statusUpdate(6, 77, "/status"), {UpdateID: 7}},
			{statusUpdate(8, authorizedID, "hello"), statusUpdate(9, authorizedID, "/status@Brother_Bot"), statusUpdate(10, authorizedID, "/status@otherbot")},
		},
	}
	fetcher := &mockFetcher{}
	sender := &recordingSender{}
	p := NewPoller(source, NewStatusHandler(authorizedID, fetcher, sender), time.Second, "brother_bot")
	p.errorPause = time.Millisecond

	p.Run(ctx)

	assert.Equal(t, []int64{0, 0, 8, 11}, source.offsets)
	assert.Equal(t, 2, fetcher.calls)
	texts := make([]string, 0, len(sender.sent))
	for _, m := range sender.sent {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{MsgCollecting, FormatReport(sampleReport()), MsgAccessDenied, MsgCollecting, FormatReport(sampleReport())}, texts)
	assert.Contains(t, metrics.Default().Render(), `brotherbot_command_runs_total{command="status",status="ok"} 3`)
	assert.Contains(t, metrics.Default().Render(), `brotherbot_telegram_poll_errors_total 1`)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text   string
		want   string
		target string
		ok     bool
	}{
		{text: "/status", want: "status", ok: true},
		{text: "/Status@brother_bot", want: "status", target: "brother_bot", ok: true},
		{text: "  /status now", want: "status", ok: true},
		{text: "/@brother_bot", ok: false},
		{text: "status", ok: false},
		{text: "/", ok: false},
		{text: "", ok: false},
	}
	for _, tt := range tests {
		got, target, ok := parseCommand(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
		assert.Equal(t, tt.target, target, tt.text)
	}
}

func TestPollerDispatch_AddressedCommands(t *testing.T) {
	tests := []struct {
		name        string
		botUsername string
		text        string
		wantFetch   bool
	}{
		{name: "bare command", botUsername: "brother_bot", text: "/status", wantFetch: true},
		{name: "own name", botUsername: "brother_bot", text: "/status@brother_bot", wantFetch: true},
		{name: "own name any case", botUsername: "@Brother_Bot", text: "/status@BROTHER_BOT", wantFetch: true},
		{name: "other bot", botUsername: "brother_bot", text: "/status@otherbot", wantFetch: false},
		{name: "unknown own name bare", botUsername: "", text: "/status", wantFetch: true},
		{name: "unknown own name addressed", botUsername: "", text: "/status@brother_bot", wantFetch: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics.ResetDefaultForTest()
			fetcher := &mockFetcher{}
			sender := &recordingSender{}
			p := NewPoller(nil, NewStatusHandler(authorizedID, fetcher, sender), time.Second, tt.botUsername)

			p.dispatch(context.Background(), statusUpdate(1, authorizedID, tt.text))

			if tt.wantFetch {
				assert.Equal(t, 1, fetcher.calls)
				require.Len(t, sender.sent, 2)
			} else {
				assert.Equal(t, 0, fetcher.calls)
				assert.Empty(t, sender.sent)
			}
		})
	}
}
