package client

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	chat "Chatty/service/chat"
)

type recNotifier struct {
	mu     sync.Mutex
	toasts []string // sender ids
	sounds int
	flash  []string
}

func (n *recNotifier) Toast(senderID, _, _, _ string) {
	n.mu.Lock()
	n.toasts = append(n.toasts, senderID)
	n.mu.Unlock()
}

func (n *recNotifier) PlaySound() {
	n.mu.Lock()
	n.sounds++
	n.mu.Unlock()
}

func (n *recNotifier) FlashTitle(name string) {
	n.mu.Lock()
	n.flash = append(n.flash, name)
	n.mu.Unlock()
}

type recHarness struct {
	r        *Reconciler
	notifier *recNotifier
	seen     []string // markSeen 的 peer
	focus    []string // sendFocus 的 peer
	hidden   bool
}

func newHarness(selfID string) *recHarness {
	h := &recHarness{notifier: &recNotifier{}}
	h.r = New(Options{
		SelfID:    selfID,
		Notifier:  h.notifier,
		MarkSeen:  func(peer string) { h.seen = append(h.seen, peer) },
		SendFocus: func(peer string) { h.focus = append(h.focus, peer) },
		DocHidden: func() bool { return h.hidden },
	})
	return h
}

func msg(id, sender, receiver, text string, fromSelf bool) chat.EnrichedMessage {
	return chat.EnrichedMessage{
		ID:         id,
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       text,
		SenderName: sender,
		FromSelf:   fromSelf,
		CreatedAt:  time.Now(),
	}
}

func TestClassifyIsTotalAndExclusive(t *testing.T) {
	h := newHarness("bob")
	h.r.SetFocus("alice")

	cases := []struct {
		name string
		m    chat.EnrichedMessage
		want Outcome
	}{
		{"self echo", msg("m1", "bob", "alice", "hi", true), OutcomeSelfMerge},
		{"self echo beats focus", msg("m2", "alice", "bob", "hi", true), OutcomeSelfMerge},
		{"focused peer", msg("m3", "alice", "bob", "hi", false), OutcomeInViewMerge},
		{"other peer", msg("m4", "carol", "bob", "hi", false), OutcomeBackgroundNotify},
	}
	for _, tc := range cases {
		if got := h.r.Classify(tc.m); got != tc.want {
			t.Fatalf("%s: classify = %v, want %v", tc.name, got, tc.want)
		}
	}

	// 无焦点时除自发消息外一律后台通知
	h.r.SetFocus("")
	if got := h.r.Classify(msg("m5", "alice", "bob", "hi", false)); got != OutcomeBackgroundNotify {
		t.Fatalf("no focus: classify = %v, want backgroundNotify", got)
	}
}

func TestSelfMergeIsSilent(t *testing.T) {
	h := newHarness("bob")
	h.r.SetFocus("alice")
	h.seen = nil // SetFocus 自己会触发一次 markSeen

	out := h.r.OnMessage(msg("m1", "bob", "alice", "from my other tab", true))
	if out != OutcomeSelfMerge {
		t.Fatalf("outcome = %v, want selfMerge", out)
	}

	conv := h.r.Conversation()
	if len(conv) != 1 || conv[0].ID != "m1" {
		t.Fatalf("conversation = %v, want [m1]", conv)
	}
	if h.notifier.sounds != 0 || len(h.notifier.toasts) != 0 {
		t.Fatalf("self merge must be silent")
	}
	if len(h.seen) != 0 {
		t.Fatalf("self merge must not mark seen")
	}

	// 自发消息属于别的会话时不进当前视图
	h.r.OnMessage(msg("m2", "bob", "carol", "elsewhere", true))
	if got := len(h.r.Conversation()); got != 1 {
		t.Fatalf("foreign self message leaked into view, len = %d", got)
	}
}

func TestInViewMergePlaysSoundAndMarksSeen(t *testing.T) {
	h := newHarness("bob")
	h.r.SetFocus("alice")
	h.seen = nil

	out := h.r.OnMessage(msg("m1", "alice", "bob", "hi", false))
	if out != OutcomeInViewMerge {
		t.Fatalf("outcome = %v, want inViewMerge", out)
	}
	if len(h.r.Conversation()) != 1 {
		t.Fatalf("message not merged into view")
	}
	if h.notifier.sounds != 1 {
		t.Fatalf("sounds = %d, want 1", h.notifier.sounds)
	}
	if len(h.notifier.toasts) != 0 {
		t.Fatalf("in-view merge must not toast")
	}
	if len(h.seen) != 1 || h.seen[0] != "alice" {
		t.Fatalf("markSeen = %v, want [alice]", h.seen)
	}
	if h.r.Unread("alice") != 0 {
		t.Fatalf("focused conversation must not grow a badge")
	}
}

func TestBackgroundNotifyOncePerMessage(t *testing.T) {
	h := newHarness("bob")

	m := msg("m1", "carol", "bob", "ping", false)
	if out := h.r.OnMessage(m); out != OutcomeBackgroundNotify {
		t.Fatalf("outcome = %v, want backgroundNotify", out)
	}
	// 同一条消息重放：分类不变，但绝不二次通知
	if out := h.r.OnMessage(m); out != OutcomeBackgroundNotify {
		t.Fatalf("replay outcome changed")
	}

	if len(h.notifier.toasts) != 1 {
		t.Fatalf("toasts = %d, want 1", len(h.notifier.toasts))
	}
	if h.r.Unread("carol") != 1 {
		t.Fatalf("unread = %d, want 1", h.r.Unread("carol"))
	}
}

func TestBackgroundNotifyFlashesHiddenTab(t *testing.T) {
	h := newHarness("bob")
	h.hidden = true

	h.r.OnMessage(msg("m1", "carol", "bob", "ping", false))
	if len(h.notifier.flash) != 1 || h.notifier.flash[0] != "carol" {
		t.Fatalf("flash = %v, want [carol]", h.notifier.flash)
	}

	h.hidden = false
	h.r.OnMessage(msg("m2", "carol", "bob", "ping", false))
	if len(h.notifier.flash) != 1 {
		t.Fatalf("visible tab must not flash")
	}
}

func TestSetFocusClearsBadgeAndReportsFocus(t *testing.T) {
	h := newHarness("bob")
	h.r.OnMessage(msg("m1", "carol", "bob", "ping", false))
	if h.r.Unread("carol") != 1 {
		t.Fatalf("setup: unread = %d", h.r.Unread("carol"))
	}

	h.r.SetFocus("carol")
	if h.r.Unread("carol") != 0 {
		t.Fatalf("focusing must clear the badge")
	}
	if len(h.seen) != 1 || h.seen[0] != "carol" {
		t.Fatalf("markSeen = %v, want [carol]", h.seen)
	}
	if len(h.focus) != 1 || h.focus[0] != "carol" {
		t.Fatalf("sendFocus = %v, want [carol]", h.focus)
	}

	// 取消选中只上报，不触发 markSeen
	h.r.SetFocus("")
	if len(h.seen) != 1 {
		t.Fatalf("deselect must not mark seen")
	}
	if len(h.focus) != 2 || h.focus[1] != "" {
		t.Fatalf("sendFocus = %v, want trailing empty", h.focus)
	}
}

func TestLoadConversationIgnoresStaleFetch(t *testing.T) {
	h := newHarness("bob")
	h.r.SetFocus("alice")

	stale := []chat.EnrichedMessage{msg("old", "carol", "bob", "old", false)}
	h.r.LoadConversation("carol", stale) // 焦点已经换人，丢弃
	if got := len(h.r.Conversation()); got != 0 {
		t.Fatalf("stale fetch applied, len = %d", got)
	}

	fresh := []chat.EnrichedMessage{msg("m1", "alice", "bob", "hi", false)}
	h.r.LoadConversation("alice", fresh)
	if got := h.r.Conversation(); len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("conversation = %v, want [m1]", got)
	}
}

func TestAppendLocalOnlyInMatchingView(t *testing.T) {
	h := newHarness("bob")
	h.r.SetFocus("alice")

	h.r.AppendLocal(msg("m1", "bob", "alice", "sent", true))
	h.r.AppendLocal(msg("m2", "bob", "carol", "other chat", true))

	got := h.r.Conversation()
	if len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("conversation = %v, want [m1]", got)
	}
}

func TestPresenceSnapshotReplacement(t *testing.T) {
	h := newHarness("bob")

	h.r.ReplaceOnline([]string{"alice", "carol"})
	if !h.r.IsOnline("alice") || !h.r.IsOnline("carol") {
		t.Fatalf("snapshot not applied: %v", h.r.Online())
	}

	// 重放同一快照是空操作
	h.r.ReplaceOnline([]string{"alice", "carol"})
	if got := h.r.Online(); len(got) != 2 {
		t.Fatalf("replay changed state: %v", got)
	}

	// 新快照全量替换，掉线的必须消失
	h.r.ReplaceOnline([]string{"carol"})
	if h.r.IsOnline("alice") {
		t.Fatalf("alice should be gone after replacement")
	}
}

func TestHandleFrameRoutesEvents(t *testing.T) {
	h := newHarness("bob")

	feed := func(event string, data any) {
		t.Helper()
		b, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		raw, _ := json.Marshal(chat.Frame{Event: event, Data: b})
		if err := h.r.HandleFrame(raw); err != nil {
			t.Fatalf("handle %s: %v", event, err)
		}
	}

	feed(chat.EventConnected, chat.ConnectedPayload{ConnID: "conn-9", UserID: "bob"})
	if h.r.ConnID() != "conn-9" {
		t.Fatalf("connID = %q, want conn-9", h.r.ConnID())
	}

	feed(chat.EventOnlineUsers, []string{"alice"})
	if !h.r.IsOnline("alice") {
		t.Fatalf("online snapshot not applied")
	}

	feed(chat.EventNewMessage, msg("m1", "carol", "bob", "ping", false))
	if h.r.Unread("carol") != 1 {
		t.Fatalf("newMessage frame not applied")
	}

	feed(chat.EventUnreadCount, chat.UnreadCountPayload{PeerID: "carol", Count: 4})
	if h.r.Unread("carol") != 4 {
		t.Fatalf("unreadCount frame not applied, got %d", h.r.Unread("carol"))
	}

	// 针对自己的清零事件把角标归零；别人的忽略
	feed(chat.EventMessagesSeen, chat.MessagesSeenPayload{ChatUserID: "carol", UserID: "someone-else"})
	if h.r.Unread("carol") != 4 {
		t.Fatalf("foreign seen event must be ignored")
	}
	feed(chat.EventMessagesSeen, chat.MessagesSeenPayload{ChatUserID: "carol", UserID: "bob"})
	if h.r.Unread("carol") != 0 {
		t.Fatalf("seen event must zero the badge")
	}

	// 未知事件向前兼容，不报错
	feed("someFutureEvent", struct{}{})
}

func TestHandleFrameRejectsGarbage(t *testing.T) {
	h := newHarness("bob")
	if err := h.r.HandleFrame([]byte("{not json")); err == nil {
		t.Fatalf("garbage frame must error")
	}
	if err := h.r.HandleFrame([]byte(`{"data":{}}`)); err == nil {
		t.Fatalf("frame without event must error")
	}
}
