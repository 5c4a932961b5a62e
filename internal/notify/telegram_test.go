package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safeguard-bot/internal/domain"
)

const testToken = "123:abc"

type botServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests map[string][]url.Values // keyed by method
	failWith map[int64]string        // chat_id -> error JSON
}

func newBotServer(t *testing.T) *botServer {
	t.Helper()
	s := &botServer{requests: make(map[string][]url.Values), failWith: make(map[int64]string)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *botServer) handle(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseMultipartForm(1 << 20)
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	s.mu.Lock()
	s.requests[method] = append(s.requests[method], r.Form)
	fail := ""
	if chat := r.Form.Get("chat_id"); chat != "" {
		for id, body := range s.failWith {
			if chat == jsonInt(id) {
				fail = body
			}
		}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case method == "getMe":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Guard","username":"guard_bot"}}`))
	case fail != "":
		_, _ = w.Write([]byte(fail))
	default:
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":-100,"type":"supergroup"}}}`))
	}
}

func (s *botServer) last(method string) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	reqs := s.requests[method]
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func newSender(t *testing.T, s *botServer) *TelegramSender {
	t.Helper()
	sender, err := NewTelegramSender(TelegramOptions{Token: testToken, APIEndpoint: s.URL + "/bot%s/%s"})
	require.NoError(t, err)
	return sender
}

func TestTelegramSender_SendMessage(t *testing.T) {
	srv := newBotServer(t)
	sender := newSender(t, srv)

	err := sender.Send(context.Background(), Message{
		ChatID: -100,
		Text:   "<b>BUY</b>",
		Buttons: []domain.Button{
			{Text: "Chart", URL: "https://dexscreener.com/x"},
			{Text: "", URL: "https://skipped"},
			{Text: "Buy", URL: "https://jup.ag/swap"},
		},
	})
	require.NoError(t, err)

	form := srv.last("sendMessage")
	require.NotNil(t, form)
	assert.Equal(t, "-100", form.Get("chat_id"))
	assert.Equal(t, "<b>BUY</b>", form.Get("text"))
	assert.Equal(t, "HTML", form.Get("parse_mode"))

	var markup struct {
		InlineKeyboard [][]struct {
			Text string `json:"text"`
			URL  string `json:"url"`
		} `json:"inline_keyboard"`
	}
	require.NoError(t, json.Unmarshal([]byte(form.Get("reply_markup")), &markup))
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, "Chart", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, "https://jup.ag/swap", markup.InlineKeyboard[0][1].URL)
}

func TestTelegramSender_SendMedia(t *testing.T) {
	srv := newBotServer(t)
	sender := newSender(t, srv)

	cases := []struct {
		media  domain.MediaType
		method string
		field  string
	}{
		{domain.MediaPhoto, "sendPhoto", "photo"},
		{domain.MediaVideo, "sendVideo", "video"},
		{domain.MediaAnimation, "sendAnimation", "animation"},
	}
	for _, tc := range cases {
		t.Run(string(tc.media), func(t *testing.T) {
			err := sender.Send(context.Background(), Message{
				ChatID: -100,
				Text:   "caption",
				Media:  &domain.Media{Type: tc.media, URL: "https://cdn.example/m.gif"},
			})
			require.NoError(t, err)

			form := srv.last(tc.method)
			require.NotNil(t, form)
			assert.Equal(t, "https://cdn.example/m.gif", form.Get(tc.field))
			assert.Equal(t, "caption", form.Get("caption"))
			assert.Equal(t, "HTML", form.Get("parse_mode"))
		})
	}
}

func TestTelegramSender_LongCaptionFallsBackToText(t *testing.T) {
	srv := newBotServer(t)
	sender := newSender(t, srv)

	err := sender.Send(context.Background(), Message{
		ChatID: -100,
		Text:   strings.Repeat("x", captionLimit+1),
		Media:  &domain.Media{Type: domain.MediaPhoto, URL: "https://cdn.example/p.png"},
	})
	require.NoError(t, err)
	assert.NotNil(t, srv.last("sendMessage"))
	assert.Nil(t, srv.last("sendPhoto"))
}

func TestTelegramSender_DestinationUnreachable(t *testing.T) {
	srv := newBotServer(t)
	srv.failWith[-1] = `{"ok":false,"error_code":403,"description":"Forbidden: bot was kicked from the supergroup chat"}`
	srv.failWith[-2] = `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`
	srv.failWith[-3] = `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 5","parameters":{"retry_after":5}}`
	sender := newSender(t, srv)

	err := sender.Send(context.Background(), Message{ChatID: -1, Text: "hi"})
	assert.ErrorIs(t, err, ErrDestinationUnreachable)

	err = sender.Send(context.Background(), Message{ChatID: -2, Text: "hi"})
	assert.ErrorIs(t, err, ErrDestinationUnreachable)

	err = sender.Send(context.Background(), Message{ChatID: -3, Text: "hi"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDestinationUnreachable)
}

func TestTelegramSender_CanceledContext(t *testing.T) {
	srv := newBotServer(t)
	sender := newSender(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sender.Send(ctx, Message{ChatID: -100, Text: "hi"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, srv.last("sendMessage"))
}

// newHangingBotServer answers getMe and blocks every other method until the
// test ends.
func newHangingBotServer(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/getMe") {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Guard","username":"guard_bot"}}`))
			return
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	return srv
}

func TestTelegramSender_SendHonorsContextDeadline(t *testing.T) {
	srv := newHangingBotServer(t)
	sender, err := NewTelegramSender(TelegramOptions{Token: testToken, APIEndpoint: srv.URL + "/bot%s/%s", Timeout: time.Minute})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = sender.Send(ctx, Message{ChatID: -100, Text: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestTelegramSender_ClientTimeout(t *testing.T) {
	srv := newHangingBotServer(t)
	sender, err := NewTelegramSender(TelegramOptions{Token: testToken, APIEndpoint: srv.URL + "/bot%s/%s", Timeout: 200 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	err = sender.Send(context.Background(), Message{ChatID: -100, Text: "hi"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDestinationUnreachable)
	assert.Less(t, time.Since(start), 2*time.Second)
}
