package notifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/stashd/internal/config"
)

type fakeBotAPI struct {
	mu       sync.Mutex
	messages []string
	chatIDs  []string
	failSend bool
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"stashd","username":"stashd_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		if f.failSend {
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
			return
		}
		_ = r.ParseForm()
		f.mu.Lock()
		f.messages = append(f.messages, r.FormValue("text"))
		f.chatIDs = append(f.chatIDs, r.FormValue("chat_id"))
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":-100123,"type":"group"}}}`))
	default:
		http.NotFound(w, r)
	}
}

func TestTelegramNotifier(t *testing.T) {
	Convey("Given a TelegramNotifier", t, func() {
		api := &fakeBotAPI{}
		srv := httptest.NewServer(api)
		defer srv.Close()

		cfg := &config.NotifyConfig{Enabled: true, BotToken: "123:abc", ChatID: "-100123"}
		newNotifier := func() *TelegramNotifier {
			n, err := NewTelegramWithClient(cfg, "time-management", srv.URL+"/bot%s/%s", srv.Client())
			So(err, ShouldBeNil)
			return n
		}
		ctx := context.Background()

		Convey("A successful run should be reported", func() {
			So(newNotifier().Notify(ctx, true, "2 retained, 1 pruned"), ShouldBeNil)

			So(api.messages, ShouldHaveLength, 1)
			So(api.messages[0], ShouldContainSubstring, "time-management backup completed")
			So(api.messages[0], ShouldContainSubstring, "2 retained, 1 pruned")
			So(api.chatIDs[0], ShouldEqual, "-100123")
		})

		Convey("A failed run should be reported", func() {
			So(newNotifier().Notify(ctx, false, "error: upload"), ShouldBeNil)

			So(api.messages, ShouldHaveLength, 1)
			So(api.messages[0], ShouldContainSubstring, "backup failed")
		})

		Convey("With on_failure_only, successes should stay quiet", func() {
			cfg.OnFailureOnly = true
			n := newNotifier()

			So(n.Notify(ctx, true, "ok"), ShouldBeNil)
			So(api.messages, ShouldBeEmpty)

			So(n.Notify(ctx, false, "broken"), ShouldBeNil)
			So(api.messages, ShouldHaveLength, 1)
		})

		Convey("An API error should be returned", func() {
			api.failSend = true

			err := newNotifier().Notify(ctx, false, "broken")

			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "chat not found")
		})

		Convey("An invalid chat id should be rejected", func() {
			cfg.ChatID = "ops-channel"

			_, err := NewTelegramWithClient(cfg, "time-management", srv.URL+"/bot%s/%s", srv.Client())

			So(err, ShouldNotBeNil)
		})
	})
}
