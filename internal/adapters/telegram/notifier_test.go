package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"mt5Assistant/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// fakeBotAPI answers getMe and sendMessage like the Bot API.
type fakeBotAPI struct {
	mu       sync.Mutex
	sent     []string
	failSend bool
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"mt5","username":"mt5_assistant_bot"}}`)
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failSend {
			fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
			return
		}
		f.sent = append(f.sent, r.Form.Get("chat_id")+":"+r.Form.Get("text"))
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"},"text":"ok"}}`)
	default:
		fmt.Fprint(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
	}
}

func newNotifier(t *testing.T, api *fakeBotAPI) *Notifier {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	n, err := New(Config{Token: "123:abc", ChatID: 42, APIEndpoint: srv.URL + "/bot%s/%s", Logger: &mockLogger{}})
	require.NoError(t, err)
	return n
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(Config{Logger: &mockLogger{}})
	assert.ErrorIs(t, err, ports.ErrConfiguration)
}

func TestNotifier_Notify(t *testing.T) {
	api := &fakeBotAPI{}
	n := newNotifier(t, api)

	require.NoError(t, n.Notify(context.Background(), "daily loss limit reached"))

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, []string{"42:daily loss limit reached"}, api.sent)
}

func TestNotifier_NotifyFailure(t *testing.T) {
	api := &fakeBotAPI{failSend: true}
	n := newNotifier(t, api)

	err := n.Notify(context.Background(), "hello")
	assert.ErrorIs(t, err, ports.ErrExternalAPIFailure)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Notify(context.Background(), "ignored"))
}
