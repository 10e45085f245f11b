// Package client holds the per-session conversation state a chat client
// keeps while connected to the gateway, and the reconciliation of that
// state against the event stream (presence snapshots, message fan-out,
// seen resets). Rendering, sounds and toasts stay behind Notifier.
package client

import (
	"encoding/json"
	"sort"
	"sync"

	chat "Chatty/service/chat"
	"Chatty/tools/errs"
)

// Outcome tags the classification of one inbound message. Classification
// is total and exclusive: every message gets exactly one tag.
type Outcome int

const (
	// OutcomeSelfMerge: a copy of our own message echoed to this session
	// from another tab/device. Merged silently, never notified.
	OutcomeSelfMerge Outcome = iota
	// OutcomeInViewMerge: from the peer we are viewing. Appended to the
	// open conversation with a soft sound; triggers a seen reset.
	OutcomeInViewMerge
	// OutcomeBackgroundNotify: any other inbound message. One notification
	// per message, deduplicated by message id.
	OutcomeBackgroundNotify
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSelfMerge:
		return "selfMerge"
	case OutcomeInViewMerge:
		return "inViewMerge"
	default:
		return "backgroundNotify"
	}
}

// Notifier is the presentation collaborator. Implementations render
// toasts, play sounds and flash the title bar; the reconciler only
// decides when.
type Notifier interface {
	Toast(senderID, senderName, profilePic, text string)
	PlaySound()
	FlashTitle(senderName string)
}

// NopNotifier drops everything (headless clients, tests).
type NopNotifier struct{}

func (NopNotifier) Toast(string, string, string, string) {}
func (NopNotifier) PlaySound()                           {}
func (NopNotifier) FlashTitle(string)                    {}

// Options wires the reconciler's collaborators.
type Options struct {
	SelfID   string
	Notifier Notifier
	// MarkSeen is called when focusing a peer or merging an in-view
	// message; the real client issues the mark-seen HTTP request here.
	MarkSeen func(peerID string)
	// SendFocus reports focus changes to the gateway (the focus frame).
	SendFocus func(peerID string)
	// DocHidden reports whether the document is hidden; a hidden tab gets
	// a title flash on background notifications.
	DocHidden func() bool
}

// Reconciler consumes the gateway event stream and merges it into local
// conversation state.
type Reconciler struct {
	mu sync.Mutex

	selfID string
	connID string
	focus  string // peer currently viewed, "" = none

	online       map[string]struct{}
	conversation []chat.EnrichedMessage // messages of the focused conversation
	unread       map[string]int64       // peer -> badge
	notified     map[string]struct{}    // message ids already notified

	notifier  Notifier
	markSeen  func(string)
	sendFocus func(string)
	docHidden func() bool
}

func New(opts Options) *Reconciler {
	n := opts.Notifier
	if n == nil {
		n = NopNotifier{}
	}
	r := &Reconciler{
		selfID:    opts.SelfID,
		online:    make(map[string]struct{}),
		unread:    make(map[string]int64),
		notified:  make(map[string]struct{}),
		notifier:  n,
		markSeen:  opts.MarkSeen,
		sendFocus: opts.SendFocus,
		docHidden: opts.DocHidden,
	}
	if r.markSeen == nil {
		r.markSeen = func(string) {}
	}
	if r.sendFocus == nil {
		r.sendFocus = func(string) {}
	}
	if r.docHidden == nil {
		r.docHidden = func() bool { return false }
	}
	return r
}

// HandleFrame feeds one raw frame from the socket through the reconciler.
func (r *Reconciler) HandleFrame(raw []byte) error {
	f, err := chat.ParseFrame(raw)
	if err != nil {
		return err
	}
	switch f.Event {
	case chat.EventConnected:
		var p chat.ConnectedPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return errs.WrapMsg(err, "connected payload")
		}
		r.mu.Lock()
		r.connID = p.ConnID
		r.mu.Unlock()
	case chat.EventOnlineUsers:
		var users []string
		if err := json.Unmarshal(f.Data, &users); err != nil {
			return errs.WrapMsg(err, "online users payload")
		}
		r.ReplaceOnline(users)
	case chat.EventNewMessage:
		var em chat.EnrichedMessage
		if err := json.Unmarshal(f.Data, &em); err != nil {
			return errs.WrapMsg(err, "new message payload")
		}
		r.OnMessage(em)
	case chat.EventMessagesSeen:
		var p chat.MessagesSeenPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return errs.WrapMsg(err, "messages seen payload")
		}
		r.onSeenReset(p)
	case chat.EventUnreadCount:
		var p chat.UnreadCountPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return errs.WrapMsg(err, "unread count payload")
		}
		r.setUnread(p.PeerID, p.Count)
	default:
		// Unknown events are forward-compatibility, not errors.
	}
	return nil
}

// Classify decides the single outcome for an inbound message. Priority:
// self-echo first, then in-view, then background. No fallthrough gaps.
func (r *Reconciler) Classify(em chat.EnrichedMessage) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.classifyLocked(em)
}

func (r *Reconciler) classifyLocked(em chat.EnrichedMessage) Outcome {
	if em.FromSelf {
		return OutcomeSelfMerge
	}
	if r.focus != "" && r.focus == em.SenderID {
		return OutcomeInViewMerge
	}
	return OutcomeBackgroundNotify
}

// OnMessage classifies and applies one inbound message, returning the tag
// that fired.
func (r *Reconciler) OnMessage(em chat.EnrichedMessage) Outcome {
	r.mu.Lock()
	out := r.classifyLocked(em)

	switch out {
	case OutcomeSelfMerge:
		// Visible only when this tab views the same conversation the
		// message was sent in. Never a sound, never a toast.
		if r.focus != "" && r.focus == em.ReceiverID {
			r.conversation = append(r.conversation, em)
		}
		r.mu.Unlock()

	case OutcomeInViewMerge:
		r.conversation = append(r.conversation, em)
		peer := em.SenderID
		r.mu.Unlock()
		r.notifier.PlaySound()
		r.markSeen(peer) // implicit seen reset for the open conversation

	case OutcomeBackgroundNotify:
		if _, dup := r.notified[em.ID]; dup {
			r.mu.Unlock()
			return out // same message replayed: no second notification
		}
		r.notified[em.ID] = struct{}{}
		r.unread[em.SenderID]++
		r.mu.Unlock()

		text := em.Text
		if text == "" {
			text = "\U0001F4F7 Image"
		}
		r.notifier.Toast(em.SenderID, em.SenderName, em.SenderProfilePic, text)
		r.notifier.PlaySound()
		if r.docHidden() {
			r.notifier.FlashTitle(em.SenderName)
		}
	}
	return out
}

// SetFocus selects the conversation with peer, clears its badge and
// triggers mark-seen; "" deselects.
func (r *Reconciler) SetFocus(peerID string) {
	r.mu.Lock()
	r.focus = peerID
	r.conversation = nil
	if peerID != "" {
		delete(r.unread, peerID)
	}
	r.mu.Unlock()

	r.sendFocus(peerID)
	if peerID != "" {
		r.markSeen(peerID)
	}
}

// LoadConversation seeds the open conversation from an HTTP fetch.
func (r *Reconciler) LoadConversation(peerID string, msgs []chat.EnrichedMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.focus != peerID {
		return // focus moved while the fetch was in flight
	}
	r.conversation = append([]chat.EnrichedMessage(nil), msgs...)
}

// AppendLocal is the originating tab's local append after a successful
// send: the no-optimistic-echo design means this copy never arrives over
// the socket.
func (r *Reconciler) AppendLocal(em chat.EnrichedMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.focus != "" && r.focus == em.ReceiverID {
		r.conversation = append(r.conversation, em)
	}
}

// ReplaceOnline applies a full presence snapshot. Replay of an identical
// snapshot is a no-op.
func (r *Reconciler) ReplaceOnline(users []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online = make(map[string]struct{}, len(users))
	for _, u := range users {
		r.online[u] = struct{}{}
	}
}

func (r *Reconciler) onSeenReset(p chat.MessagesSeenPayload) {
	if p.UserID != r.selfID {
		return
	}
	r.mu.Lock()
	delete(r.unread, p.ChatUserID)
	r.mu.Unlock()
}

func (r *Reconciler) setUnread(peerID string, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 {
		delete(r.unread, peerID)
		return
	}
	r.unread[peerID] = n
}

// ---- accessors ----

func (r *Reconciler) ConnID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connID
}

func (r *Reconciler) Focus() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.focus
}

func (r *Reconciler) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.online[userID]
	return ok
}

func (r *Reconciler) Online() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.online))
	for u := range r.online {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func (r *Reconciler) Unread(peerID string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unread[peerID]
}

// Conversation returns a copy of the focused conversation.
func (r *Reconciler) Conversation() []chat.EnrichedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chat.EnrichedMessage(nil), r.conversation...)
}
