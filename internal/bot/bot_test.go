package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"

	"content_scout/internal/config"
	"content_scout/internal/model"
	"content_scout/internal/quota"
	"content_scout/internal/scan"
	"content_scout/internal/storage"
)

// --- mocks ---

type sentMsg struct {
	ChatID  int64
	Text    string
	Buttons []string
}

type mockAPI struct {
	mu   sync.Mutex
	sent []sentMsg
	err  error
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, nil
	}
	if m.err != nil {
		return tgbotapi.Message{}, m.err
	}
	var buttons []string
	if kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
		for _, row := range kb.InlineKeyboard {
			for _, btn := range row {
				if btn.CallbackData != nil {
					buttons = append(buttons, *btn.CallbackData)
				}
			}
		}
	}
	m.mu.Lock()
	m.sent = append(m.sent, sentMsg{ChatID: msg.ChatID, Text: msg.Text, Buttons: buttons})
	m.mu.Unlock()
	return tgbotapi.Message{}, nil
}

func (m *mockAPI) GetUpdatesChan(_ tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(tgbotapi.UpdatesChannel)
}

func (m *mockAPI) StopReceivingUpdates() {}

func (m *mockAPI) last() sentMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMsg{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *mockAPI) lastText() string {
	return m.last().Text
}

func (m *mockAPI) allTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, s := range m.sent {
		out[i] = s.Text
	}
	return out
}

func (m *mockAPI) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

type stubScanner struct {
	state  scan.State
	report model.ScanReport
	err    error
	calls  int
}

func (s *stubScanner) RunScan(_ context.Context) (model.ScanReport, error) {
	s.calls++
	return s.report, s.err
}

func (s *stubScanner) State() scan.State { return s.state }

type stubQuota map[model.Platform]quota.Status

func (q stubQuota) Status(p model.Platform) quota.Status { return q[p] }

// --- helpers ---

func newTestBot(t *testing.T) (*Bot, *mockAPI, *storage.SQLite, *stubScanner) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{
		GitHub:         config.Platform{Token: "gh"},
		X:              config.Platform{Token: "x"},
		TelegramChatID: 100,
		NotifyMinTier:  model.Advanced,
	}
	api := &mockAPI{}
	scanner := &stubScanner{state: scan.StateIdle}
	b := &Bot{
		api:     api,
		store:   store,
		cfg:     cfg,
		scanner: scanner,
		quota: stubQuota{
			model.CodeHost:  {DailyRemaining: 480, MonthlyRemaining: 9520},
			model.ShortForm: {DailyRemaining: 12, MonthlyRemaining: 300},
		},
		platforms: configuredPlatforms(cfg),
		now:       func() time.Time { return testNow },
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return b, api, store, scanner
}

func seedItem(t *testing.T, store *storage.SQLite, id string, tier model.QualityTier, score int) model.ContentItem {
	t.Helper()
	item := sampleRepo()
	item.PlatformID = id
	item.Title = "repo-" + id
	a := sampleAnalysis()
	a.Quality = tier
	a.Score = score
	if err := store.Accept(context.Background(), item, a); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item
}

func requireContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("reply missing %q, got:\n%s", want, got)
	}
}

// --- handler tests ---

func TestHandleStart(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	b.handleStart(100)
	requireContains(t, api.lastText(), "Welcome to Content Scout")
}

func TestHandleHelp(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	b.handleHelp(100)
	requireContains(t, api.lastText(), "/top")
	requireContains(t, api.lastText(), "/why")
}

func TestHandleStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("no scans yet", func(t *testing.T) {
		b, api, _, _ := newTestBot(t)
		b.handleStatus(ctx, 100)
		reply := api.last()
		requireContains(t, reply.Text, "Pipeline: idle")
		requireContains(t, reply.Text, "codehost: 480 / 9,520")
		requireContains(t, reply.Text, "shortform: 12 / 300")
		requireContains(t, reply.Text, "Last scan: never")
		if strings.Contains(reply.Text, "video") {
			t.Errorf("unconfigured platform listed:\n%s", reply.Text)
		}
		if diff := cmp.Diff([]string{"status:", "scan:"}, reply.Buttons); diff != "" {
			t.Errorf("buttons mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("with history", func(t *testing.T) {
		b, api, store, scanner := newTestBot(t)
		scanner.state = scan.StateFetching
		report := model.ScanReport{ID: "r1", StartedAt: testNow.Add(-3 * time.Hour), FinishedAt: testNow.Add(-3 * time.Hour), Accepted: 4, Unique: 19}
		if err := store.RecordScan(ctx, report); err != nil {
			t.Fatalf("record scan: %v", err)
		}
		b.handleStatus(ctx, 100)
		requireContains(t, api.lastText(), "Pipeline: fetching")
		requireContains(t, api.lastText(), "Last scan: 3 hours ago (accepted 4 of 19)")
	})
}

func TestHandleScan(t *testing.T) {
	ctx := context.Background()

	t.Run("busy", func(t *testing.T) {
		b, api, _, scanner := newTestBot(t)
		scanner.state = scan.StateScoring
		b.handleScan(ctx, 100)
		requireContains(t, api.lastText(), "already running (scoring)")
		if diff := cmp.Diff(0, scanner.calls); diff != "" {
			t.Errorf("scan should not start (-want +got):\n%s", diff)
		}
	})

	t.Run("lost race", func(t *testing.T) {
		b, api, _, scanner := newTestBot(t)
		scanner.err = scan.ErrScanInProgress
		b.handleScan(ctx, 100)
		requireContains(t, api.lastText(), "already running")
	})

	t.Run("failure", func(t *testing.T) {
		b, api, _, scanner := newTestBot(t)
		scanner.err = errors.New("boom")
		b.handleScan(ctx, 100)
		requireContains(t, api.lastText(), "Scan failed: boom")
	})

	t.Run("success", func(t *testing.T) {
		b, api, _, scanner := newTestBot(t)
		scanner.report = model.ScanReport{
			ID: "abcdef0123", StartedAt: testNow, FinishedAt: testNow.Add(5 * time.Second),
			Fetched: 10, Unique: 9, Relevant: 8, Scored: 8, Accepted: 2,
		}
		b.handleScan(ctx, 100)

		texts := api.allTexts()
		if diff := cmp.Diff(2, len(texts)); diff != "" {
			t.Fatalf("message count mismatch (-want +got):\n%s", diff)
		}
		requireContains(t, texts[0], "Scan started")
		requireContains(t, texts[1], "Scan abcdef01 finished in 5s")
		requireContains(t, texts[1], "Accepted 2, failed 0")
	})
}

func TestHandleTop(t *testing.T) {
	ctx := context.Background()

	t.Run("bad args", func(t *testing.T) {
		b, api, _, _ := newTestBot(t)
		b.handleTop(ctx, 100, "lots")
		requireContains(t, api.lastText(), "usage: /top")
	})

	t.Run("empty", func(t *testing.T) {
		b, api, _, _ := newTestBot(t)
		b.handleTop(ctx, 100, "")
		requireContains(t, api.lastText(), "No stored items at basic or above")
		if len(api.last().Buttons) != 0 {
			t.Errorf("expected no buttons, got %v", api.last().Buttons)
		}
	})

	t.Run("ranked with why buttons", func(t *testing.T) {
		b, api, store, _ := newTestBot(t)
		seedItem(t, store, "1", model.Basic, 45)
		seedItem(t, store, "2", model.Advanced, 88)
		seedItem(t, store, "3", model.LowQuality, 30)

		b.handleTop(ctx, 100, "")
		reply := api.last()
		requireContains(t, reply.Text, "1. [ADVANCED 88] repo-2")
		requireContains(t, reply.Text, "2. [BASIC 45] repo-1")
		if strings.Contains(reply.Text, "repo-3") {
			t.Errorf("low quality item listed:\n%s", reply.Text)
		}
		if diff := cmp.Diff([]string{"why:codehost:2", "why:codehost:1"}, reply.Buttons); diff != "" {
			t.Errorf("buttons mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestHandleWhy(t *testing.T) {
	ctx := context.Background()

	t.Run("bad args", func(t *testing.T) {
		b, api, _, _ := newTestBot(t)
		b.handleWhy(ctx, 100, "")
		requireContains(t, api.lastText(), "usage: /why")
	})

	t.Run("not found", func(t *testing.T) {
		b, api, _, _ := newTestBot(t)
		b.handleWhy(ctx, 100, "codehost 999")
		requireContains(t, api.lastText(), "Item codehost:999 not found")
	})

	t.Run("success", func(t *testing.T) {
		b, api, store, _ := newTestBot(t)
		seedItem(t, store, "7", model.Advanced, 82)
		b.handleWhy(ctx, 100, "codehost 7")
		requireContains(t, api.lastText(), `"repo-7" scored 82`)
		requireContains(t, api.lastText(), "- strong technical depth (72)")
	})
}

func TestHandleCommand(t *testing.T) {
	ctx := context.Background()

	makeMsg := func(cmd, args string) *tgbotapi.Message {
		text := "/" + cmd
		if args != "" {
			text += " " + args
		}
		return &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: 100},
			Text: text,
			Entities: []tgbotapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: len("/" + cmd)},
			},
		}
	}

	t.Run("dispatches known commands", func(t *testing.T) {
		b, api, _, _ := newTestBot(t)

		cmds := []struct {
			cmd      string
			args     string
			contains string
		}{
			{"start", "", "Welcome"},
			{"help", "", "/status"},
			{"status", "", "Pipeline: idle"},
			{"top", "3", "No stored items"},
			{"why", "video abc", "not found"},
			{"unknown_cmd", "", "Unknown command"},
		}

		for _, tc := range cmds {
			api.reset()
			b.handleCommand(ctx, makeMsg(tc.cmd, tc.args))
			requireContains(t, api.lastText(), tc.contains)
		}
	})
}

func TestHandleCallback(t *testing.T) {
	ctx := context.Background()

	makeCallback := func(data string) *tgbotapi.CallbackQuery {
		return &tgbotapi.CallbackQuery{
			ID:      "cb",
			Data:    data,
			From:    &tgbotapi.User{ID: 1, UserName: "operator"},
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 100}},
		}
	}

	t.Run("invalid data format", func(t *testing.T) {
		b, api, _, _ := newTestBot(t)
		b.handleCallback(ctx, makeCallback("nocolon"))
		if diff := cmp.Diff(0, len(api.allTexts())); diff != "" {
			t.Errorf("expected no text messages (-want +got):\n%s", diff)
		}
	})

	t.Run("malformed why payload", func(t *testing.T) {
		b, api, _, _ := newTestBot(t)
		b.handleCallback(ctx, makeCallback("why:mastodon:1"))
		if diff := cmp.Diff(0, len(api.allTexts())); diff != "" {
			t.Errorf("expected no text messages (-want +got):\n%s", diff)
		}
	})

	t.Run("why callback", func(t *testing.T) {
		b, api, store, _ := newTestBot(t)
		item := seedItem(t, store, "5", model.Innovative, 93)
		b.handleCallback(ctx, makeCallback(WhyData(item.Platform, item.PlatformID)))
		requireContains(t, api.lastText(), `"repo-5" scored 93 (innovative`)
	})

	t.Run("status callback", func(t *testing.T) {
		b, api, _, _ := newTestBot(t)
		b.handleCallback(ctx, makeCallback("status:"))
		requireContains(t, api.lastText(), "Pipeline: idle")
	})
}

// --- notifier tests ---

func TestNotifierAccept(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		chatID      int64
		tier        model.QualityTier
		sendErr     error
		wantSent    int
		wantErr     bool
		wantButtons []string
	}{
		{name: "below notify tier", chatID: 100, tier: model.Intermediate, wantSent: 0},
		{name: "at notify tier", chatID: 100, tier: model.Advanced, wantSent: 1, wantButtons: []string{"why:codehost:1"}},
		{name: "above notify tier", chatID: 100, tier: model.Innovative, wantSent: 1, wantButtons: []string{"why:codehost:1"}},
		{name: "no chat configured", chatID: 0, tier: model.Innovative, wantSent: 0},
		{name: "send failure", chatID: 100, tier: model.Innovative, sendErr: errors.New("telegram down"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, api, _, _ := newTestBot(t)
			b.cfg.TelegramChatID = tt.chatID
			api.err = tt.sendErr
			n := b.Notifier()

			a := sampleAnalysis()
			a.Quality = tt.tier
			err := n.Accept(ctx, sampleRepo(), a)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			texts := api.allTexts()
			if diff := cmp.Diff(tt.wantSent, len(texts)); diff != "" {
				t.Fatalf("sent count mismatch (-want +got):\n%s", diff)
			}
			if tt.wantSent == 0 {
				return
			}
			reply := api.last()
			if diff := cmp.Diff(tt.chatID, reply.ChatID); diff != "" {
				t.Errorf("chat mismatch (-want +got):\n%s", diff)
			}
			requireContains(t, reply.Text, "acme/agent-runtime")
			if diff := cmp.Diff(tt.wantButtons, reply.Buttons); diff != "" {
				t.Errorf("buttons mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNotifierName(t *testing.T) {
	b, _, _, _ := newTestBot(t)
	if diff := cmp.Diff("telegram", b.Notifier().Name()); diff != "" {
		t.Errorf("Name() mismatch (-want +got):\n%s", diff)
	}
}
