package session

import (
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemyapp/brother-bot/internal/auth"
)

func TestChromePage_HandleEventFlattensHeaders(t *testing.T) {
	tests := []struct {
		name string
		ev   any
		want []map[string]string
	}{
		{
			name: "request will be sent",
			ev: &network.EventRequestWillBeSent{Request: &network.Request{
				Headers: network.Headers{"Authorization": "Bearer page-token", "Accept": "application/json"},
			}},
			want: []map[string]string{{"authorization": "Bearer page-token", "accept": "application/json"}},
		},
		{
			name: "extra info",
			ev: &network.EventRequestWillBeSentExtraInfo{
				Headers: network.Headers{"AUTHORIZATION": "Bearer stack-token"},
			},
			want: []map[string]string{{"authorization": "Bearer stack-token"}},
		},
		{
			name: "non string value",
			ev: &network.EventRequestWillBeSentExtraInfo{
				Headers: network.Headers{"Content-Length": float64(42)},
			},
			want: []map[string]string{{"content-length": "42"}},
		},
		{
			name: "request without headers",
			ev:   &network.EventRequestWillBeSent{Request: &network.Request{}},
		},
		{
			name: "nil request",
			ev:   &network.EventRequestWillBeSent{},
		},
		{
			name: "unrelated event",
			ev:   &network.EventResponseReceived{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &chromePage{}
			var got []map[string]string
			p.OnRequest(func(h map[string]string) { got = append(got, h) })

			p.handleEvent(tt.ev)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChromePage_ExtraInfoHeaderYieldsBearerToken(t *testing.T) {
	p := &chromePage{}
	var tokens []string
	p.OnRequest(func(h map[string]string) {
		if tok, ok := auth.BearerToken(h["authorization"]); ok {
			tokens = append(tokens, tok)
		}
	})

	p.handleEvent(&network.EventRequestWillBeSent{Request: &network.Request{
		Headers: network.Headers{"Accept": "*/*"},
	}})
	p.handleEvent(&network.EventRequestWillBeSentExtraInfo{
		Headers: network.Headers{"Authorization": "Bearer abc.def.ghi"},
	})

	require.Len(t, tokens, 1)
	assert.Equal(t, "abc.def.ghi", tokens[0])
}

func TestChromePage_EveryObserverSeesHeaders(t *testing.T) {
	p := &chromePage{}
	calls := 0
	for i := 0; i < 3; i++ {
		p.OnRequest(func(map[string]string) { calls++ })
	}
	p.handleEvent(&network.EventRequestWillBeSentExtraInfo{Headers: network.Headers{"X": "y"}})
	assert.Equal(t, 3, calls)
}
