package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type capturedCall struct {
	path    string
	payload map[string]any
}

func newBotServer(t *testing.T, status int, reply string) (*httptest.Server, *[]capturedCall) {
	t.Helper()
	var calls []capturedCall
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		calls = append(calls, capturedCall{path: r.URL.Path, payload: payload})
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestPublishMessage(t *testing.T) {
	server, calls := newBotServer(t, http.StatusOK, `{"ok":true}`)
	n := NewNotifier("TOKEN", server.URL)

	require.NoError(t, n.PublishMessage(context.Background(), "42", "<b>hi</b>"))

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	require.Equal(t, "/botTOKEN/sendMessage", call.path)
	require.Equal(t, "42", call.payload["chat_id"])
	require.Equal(t, "<b>hi</b>", call.payload["text"])
	require.Equal(t, "HTML", call.payload["parse_mode"])
	require.Equal(t, true, call.payload["disable_web_page_preview"])
}

func TestPublishMessageErrors(t *testing.T) {
	server, _ := newBotServer(t, http.StatusBadRequest, `{"ok":false,"description":"can't parse entities"}`)
	require.Error(t, NewNotifier("TOKEN", server.URL).PublishMessage(context.Background(), "42", "x"))

	rejected, _ := newBotServer(t, http.StatusOK, `{"ok":false,"description":"nope"}`)
	require.Error(t, NewNotifier("TOKEN", rejected.URL).PublishMessage(context.Background(), "42", "x"))

	require.Error(t, NewNotifier("", server.URL).PublishMessage(context.Background(), "42", "x"))
	require.Error(t, NewNotifier("TOKEN", server.URL).PublishMessage(context.Background(), "", "x"))
}

func TestSetWebhookAndCommands(t *testing.T) {
	server, calls := newBotServer(t, http.StatusOK, `{"ok":true}`)
	n := NewNotifier("TOKEN", server.URL)

	require.NoError(t, n.SetWebhook(context.Background(), "https://digest.example.com/api/telegram/webhook"))
	require.NoError(t, n.SetCommands(context.Background(), DefaultCommands))

	require.Len(t, *calls, 2)
	require.Equal(t, "/botTOKEN/setWebhook", (*calls)[0].path)
	require.Equal(t, "https://digest.example.com/api/telegram/webhook", (*calls)[0].payload["url"])
	require.Equal(t, "/botTOKEN/setMyCommands", (*calls)[1].path)
	require.Len(t, (*calls)[1].payload["commands"], len(DefaultCommands))
}

func TestParseUpdate(t *testing.T) {
	chatID, text, ok, err := ParseUpdate(strings.NewReader(`{"update_id":1,"message":{"chat":{"id":-100123},"text":"YES"}}`))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "-100123", chatID)
	require.Equal(t, "YES", text)

	_, _, ok, err = ParseUpdate(strings.NewReader(`{"update_id":2,"edited_message":{}}`))
	require.NoError(t, err)
	require.False(t, ok)

	_, _, _, err = ParseUpdate(strings.NewReader(`not json`))
	require.Error(t, err)
}
