package engine

// Action is the reconciler's decision for the slot under the cursor.
type Action string

const (
	// ActionSkipSystem steps over a system message without consuming the block.
	ActionSkipSystem Action = "skip_system"

	// ActionCreate appends the block; the cursor is past the end of the window.
	ActionCreate Action = "create"

	// ActionDeleteForeign removes a foreign message occupying the slot.
	ActionDeleteForeign Action = "delete_foreign"

	// ActionEdit rewrites an owned message to match the block.
	ActionEdit Action = "edit"

	// ActionKeep leaves an owned message that already matches the block.
	ActionKeep Action = "keep"
)

// Consumes reports whether the action places the block.
func (a Action) Consumes() bool {
	return a == ActionCreate || a == ActionEdit || a == ActionKeep
}

// Decide picks the action for block at cursor in window.
//
// Precedence:
//  1. system message at the cursor: step over it
//  2. cursor at or past the end: create
//  3. foreign message at the cursor: delete it (never create over it)
//  4. owned message: edit if content or attachment differ, else keep
func Decide(window []Message, cursor int, block RenderBlock, self string) Action {
	if cursor < len(window) && !window[cursor].IsStandard() {
		return ActionSkipSystem
	}

	if cursor >= len(window) {
		return ActionCreate
	}

	msg := window[cursor]
	if !msg.OwnedBy(self) {
		return ActionDeleteForeign
	}

	if msg.Content != block.Content {
		return ActionEdit
	}
	if block.HasAttachment() && !msg.Carries(block.Attachment) {
		return ActionEdit
	}
	return ActionKeep
}

// DecideCleanup picks the cleanup action at cursor: stop past the end, step
// over system messages, delete everything else.
func DecideCleanup(window []Message, cursor int) (Action, bool) {
	if cursor >= len(window) {
		return "", false
	}
	if !window[cursor].IsStandard() {
		return ActionSkipSystem, true
	}
	return ActionDeleteForeign, true
}
