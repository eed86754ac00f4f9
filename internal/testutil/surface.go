package testutil

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/roach88/rollcall/internal/engine"
	"github.com/roach88/rollcall/internal/roster"
)

// ErrMessageNotFound is returned when an edit or delete targets a missing id.
var ErrMessageNotFound = errors.New("message not found")

// Write records one mutation accepted by a MemSurface.
type Write struct {
	Op         engine.Op
	SurfaceID  string
	MessageID  string
	Content    string
	Attachment string
}

// String renders the write as one transcript line.
func (w Write) String() string {
	s := fmt.Sprintf("%s %s", w.Op, w.MessageID)
	if w.Op != engine.OpDelete {
		s += fmt.Sprintf(" %q", w.Content)
	}
	if w.Attachment != "" {
		s += " +" + w.Attachment
	}
	return s
}

// MemSurface is an in-memory engine.Surface.
//
// It enforces the same rules as the real surface: only the acting identity's
// standard messages may be edited, and system messages cannot be deleted.
// Faults can be injected per operation and a hook can mutate the log after
// every accepted write, which is how tests simulate surface-injected notices.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type MemSurface struct {
	mu       sync.Mutex
	self     string
	ids      *IDSequence
	logs     map[string][]engine.Message
	writes   []Write
	reads    int
	faults   map[engine.Op]error
	readErr  error
	delay    time.Duration
	afterOps func(s *MemSurface, w Write)
}

// NewMemSurface creates an empty surface acting as self.
func NewMemSurface(self string) *MemSurface {
	return &MemSurface{
		self:   self,
		ids:    NewIDSequence("m"),
		logs:   make(map[string][]engine.Message),
		faults: make(map[engine.Op]error),
	}
}

// Self implements engine.Surface.
func (s *MemSurface) Self() string {
	return s.self
}

// Seed appends messages to a surface without recording writes.
// Messages without an id get one from the sequence.
func (s *MemSurface) Seed(surfaceID string, msgs ...engine.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		if m.ID == "" {
			m.ID = s.ids.Next()
		}
		m.Attachments = slices.Clone(m.Attachments)
		s.logs[surfaceID] = append(s.logs[surfaceID], m)
	}
}

// Owned builds a standard message authored by the surface identity.
func (s *MemSurface) Owned(content string, attachments ...string) engine.Message {
	return engine.Message{
		AuthorID:    s.self,
		Type:        engine.MessageStandard,
		Content:     content,
		Attachments: attachments,
	}
}

// Foreign builds a standard message authored by someone else.
func Foreign(author, content string) engine.Message {
	return engine.Message{AuthorID: author, Type: engine.MessageStandard, Content: content}
}

// System builds a system notice.
func System(content string) engine.Message {
	return engine.Message{AuthorID: "system", Type: engine.MessageSystem, Content: content}
}

// FailOn makes every subsequent op fail with err. A nil err clears the fault.
func (s *MemSurface) FailOn(op engine.Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

// FailHistory makes every subsequent read fail with err.
func (s *MemSurface) FailHistory(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// SetReadDelay makes every read wait d or until the context ends.
func (s *MemSurface) SetReadDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// AfterWrite installs a hook run after every accepted write.
// The hook runs without the surface lock held and may call Seed.
func (s *MemSurface) AfterWrite(fn func(s *MemSurface, w Write)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterOps = fn
}

// History implements engine.Surface.
func (s *MemSurface) History(ctx context.Context, surfaceID string, limit int) ([]engine.Message, error) {
	s.mu.Lock()
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads++
	if s.readErr != nil {
		return nil, s.readErr
	}

	log := s.logs[surfaceID]
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	return cloneMessages(log), nil
}

// Send implements engine.Surface.
func (s *MemSurface) Send(ctx context.Context, surfaceID, content string, att *engine.Attachment) (engine.Message, error) {
	s.mu.Lock()
	if err := s.faults[engine.OpCreate]; err != nil {
		s.mu.Unlock()
		return engine.Message{}, err
	}

	msg := engine.Message{
		ID:          s.ids.Next(),
		Position:    len(s.logs[surfaceID]),
		AuthorID:    s.self,
		Type:        engine.MessageStandard,
		Content:     content,
		Attachments: attachmentNames(att),
	}
	s.logs[surfaceID] = append(s.logs[surfaceID], msg)
	w := s.record(engine.OpCreate, surfaceID, msg.ID, content, att)
	s.mu.Unlock()

	s.runHook(w)
	return msg, nil
}

// Edit implements engine.Surface.
func (s *MemSurface) Edit(ctx context.Context, surfaceID, messageID, content string, att *engine.Attachment) (engine.Message, error) {
	s.mu.Lock()
	if err := s.faults[engine.OpEdit]; err != nil {
		s.mu.Unlock()
		return engine.Message{}, err
	}

	idx := s.indexOf(surfaceID, messageID)
	if idx < 0 {
		s.mu.Unlock()
		return engine.Message{}, fmt.Errorf("edit %s: %w", messageID, ErrMessageNotFound)
	}
	log := s.logs[surfaceID]
	if !log[idx].OwnedBy(s.self) {
		s.mu.Unlock()
		return engine.Message{}, fmt.Errorf("edit %s: cannot edit a message authored by %s", messageID, log[idx].AuthorID)
	}

	log[idx].Content = content
	log[idx].Attachments = attachmentNames(att)
	msg := log[idx]
	w := s.record(engine.OpEdit, surfaceID, messageID, content, att)
	s.mu.Unlock()

	s.runHook(w)
	return msg, nil
}

// Delete implements engine.Surface.
func (s *MemSurface) Delete(ctx context.Context, surfaceID, messageID string) error {
	s.mu.Lock()
	if err := s.faults[engine.OpDelete]; err != nil {
		s.mu.Unlock()
		return err
	}

	idx := s.indexOf(surfaceID, messageID)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("delete %s: %w", messageID, ErrMessageNotFound)
	}
	if !s.logs[surfaceID][idx].IsStandard() {
		s.mu.Unlock()
		return fmt.Errorf("delete %s: system messages cannot be deleted", messageID)
	}

	s.logs[surfaceID] = slices.Delete(s.logs[surfaceID], idx, idx+1)
	w := s.record(engine.OpDelete, surfaceID, messageID, "", nil)
	s.mu.Unlock()

	s.runHook(w)
	return nil
}

// Messages returns a copy of a surface's full log, oldest first.
func (s *MemSurface) Messages(surfaceID string) []engine.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMessages(s.logs[surfaceID])
}

// Contents returns the content of every message on a surface, oldest first.
func (s *MemSurface) Contents(surfaceID string) []string {
	msgs := s.Messages(surfaceID)
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

// Writes returns a copy of every accepted write, in order.
func (s *MemSurface) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.writes)
}

// WriteCount returns the number of accepted writes of op.
func (s *MemSurface) WriteCount(op engine.Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.writes {
		if w.Op == op {
			n++
		}
	}
	return n
}

// Reads returns how many times History was called.
func (s *MemSurface) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// ResetWrites clears the write log and read counter.
func (s *MemSurface) ResetWrites() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = nil
	s.reads = 0
}

// record must be called with s.mu held.
func (s *MemSurface) record(op engine.Op, surfaceID, messageID, content string, att *engine.Attachment) Write {
	w := Write{Op: op, SurfaceID: surfaceID, MessageID: messageID, Content: content}
	if att != nil {
		w.Attachment = att.Name
	}
	s.writes = append(s.writes, w)
	return w
}

func (s *MemSurface) runHook(w Write) {
	s.mu.Lock()
	hook := s.afterOps
	s.mu.Unlock()
	if hook != nil {
		hook(s, w)
	}
}

// indexOf must be called with s.mu held.
func (s *MemSurface) indexOf(surfaceID, messageID string) int {
	return slices.IndexFunc(s.logs[surfaceID], func(m engine.Message) bool {
		return m.ID == messageID
	})
}

func cloneMessages(msgs []engine.Message) []engine.Message {
	out := make([]engine.Message, len(msgs))
	for i, m := range msgs {
		m.Position = i
		m.Attachments = slices.Clone(m.Attachments)
		out[i] = m
	}
	return out
}

func attachmentNames(att *engine.Attachment) []string {
	if att == nil {
		return nil
	}
	return []string{att.Name}
}

// MemNotifier records diagnostics posted through engine.Notifier.
type MemNotifier struct {
	mu    sync.Mutex
	posts []Post
	err   error
}

// Post is one recorded diagnostic.
type Post struct {
	SurfaceID string
	Text      string
}

// NewMemNotifier creates a notifier that records posts. If err is non-nil,
// every Notify call records the post and then returns err.
func NewMemNotifier(err error) *MemNotifier {
	return &MemNotifier{err: err}
}

// Notify implements engine.Notifier.
func (n *MemNotifier) Notify(ctx context.Context, surfaceID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.posts = append(n.posts, Post{SurfaceID: surfaceID, Text: text})
	return n.err
}

// Posts returns a copy of every recorded post.
func (n *MemNotifier) Posts() []Post {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.posts)
}

// StaticRoster is an engine.Roster serving fixed values.
type StaticRoster struct {
	mu          sync.Mutex
	settings    map[string]roster.Settings
	snapshots   map[string]roster.Snapshot
	snapshotErr error
}

// NewStaticRoster creates an empty roster. Communities without settings
// report no display surface.
func NewStaticRoster() *StaticRoster {
	return &StaticRoster{
		settings:  make(map[string]roster.Settings),
		snapshots: make(map[string]roster.Snapshot),
	}
}

// SetSettings stores the destination settings for a community.
func (r *StaticRoster) SetSettings(s roster.Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[s.CommunityID] = s
}

// SetSnapshot stores the snapshot served for a community.
func (r *StaticRoster) SetSnapshot(communityID string, snap roster.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[communityID] = snap
}

// FailSnapshot makes every subsequent Snapshot call fail with err.
func (r *StaticRoster) FailSnapshot(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshotErr = err
}

// GetSettings implements engine.Roster.
func (r *StaticRoster) GetSettings(ctx context.Context, communityID string) (roster.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.settings[communityID]; ok {
		return s, nil
	}
	return roster.Settings{CommunityID: communityID}, nil
}

// Snapshot implements engine.Roster.
func (r *StaticRoster) Snapshot(ctx context.Context, communityID string) (roster.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshotErr != nil {
		return roster.Snapshot{}, r.snapshotErr
	}
	return r.snapshots[communityID], nil
}
