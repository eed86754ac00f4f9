package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testSelf = "bot"

func owned(content string, attachments ...string) Message {
	return Message{AuthorID: testSelf, Type: MessageStandard, Content: content, Attachments: attachments}
}

func foreign(content string) Message {
	return Message{AuthorID: "someone", Type: MessageStandard, Content: content}
}

func system(content string) Message {
	return Message{AuthorID: "system", Type: MessageSystem, Content: content}
}

func TestDecide(t *testing.T) {
	banner := &Attachment{Name: "banner.png", Data: []byte{1}}

	tests := []struct {
		name   string
		window []Message
		cursor int
		block  RenderBlock
		want   Action
	}{
		{
			name:  "empty window creates",
			block: RenderBlock{Content: "a"},
			want:  ActionCreate,
		},
		{
			name:   "cursor past end creates",
			window: []Message{owned("a")},
			cursor: 1,
			block:  RenderBlock{Content: "b"},
			want:   ActionCreate,
		},
		{
			name:   "system message is skipped",
			window: []Message{system("pinned")},
			block:  RenderBlock{Content: "a"},
			want:   ActionSkipSystem,
		},
		{
			name:   "system message from self is still skipped",
			window: []Message{{AuthorID: testSelf, Type: MessageSystem, Content: "a"}},
			block:  RenderBlock{Content: "a"},
			want:   ActionSkipSystem,
		},
		{
			name:   "foreign message is deleted even when content matches",
			window: []Message{foreign("a")},
			block:  RenderBlock{Content: "a"},
			want:   ActionDeleteForeign,
		},
		{
			name:   "owned message with matching content is kept",
			window: []Message{owned("a")},
			block:  RenderBlock{Content: "a"},
			want:   ActionKeep,
		},
		{
			name:   "owned message with different content is edited",
			window: []Message{owned("old")},
			block:  RenderBlock{Content: "new"},
			want:   ActionEdit,
		},
		{
			name:   "attachments untouched when block needs none",
			window: []Message{owned("a", "stale.png")},
			block:  RenderBlock{Content: "a"},
			want:   ActionKeep,
		},
		{
			name:   "missing attachment forces edit",
			window: []Message{owned("a")},
			block:  RenderBlock{Content: "a", Attachment: banner},
			want:   ActionEdit,
		},
		{
			name:   "wrong attachment forces edit",
			window: []Message{owned("a", "other.png")},
			block:  RenderBlock{Content: "a", Attachment: banner},
			want:   ActionEdit,
		},
		{
			name:   "extra attachment forces edit",
			window: []Message{owned("a", "banner.png", "extra.png")},
			block:  RenderBlock{Content: "a", Attachment: banner},
			want:   ActionEdit,
		},
		{
			name:   "matching attachment is kept",
			window: []Message{owned("a", "banner.png")},
			block:  RenderBlock{Content: "a", Attachment: banner},
			want:   ActionKeep,
		},
		{
			name:   "cursor selects the slot",
			window: []Message{foreign("x"), owned("a")},
			cursor: 1,
			block:  RenderBlock{Content: "a"},
			want:   ActionKeep,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.window, tt.cursor, tt.block, testSelf)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecideCleanup(t *testing.T) {
	window := []Message{owned("a"), system("notice"), foreign("b")}

	action, ok := DecideCleanup(window, 0)
	assert.True(t, ok)
	assert.Equal(t, ActionDeleteForeign, action)

	action, ok = DecideCleanup(window, 1)
	assert.True(t, ok)
	assert.Equal(t, ActionSkipSystem, action)

	action, ok = DecideCleanup(window, 2)
	assert.True(t, ok)
	assert.Equal(t, ActionDeleteForeign, action)

	_, ok = DecideCleanup(window, 3)
	assert.False(t, ok)

	_, ok = DecideCleanup(nil, 0)
	assert.False(t, ok)
}

func TestAction_Consumes(t *testing.T) {
	assert.True(t, ActionCreate.Consumes())
	assert.True(t, ActionEdit.Consumes())
	assert.True(t, ActionKeep.Consumes())
	assert.False(t, ActionSkipSystem.Consumes())
	assert.False(t, ActionDeleteForeign.Consumes())
}
