package engine

import "strings"

// Attachment is a binary file carried by a render block.
type Attachment struct {
	Name string
	Data []byte
}

// RenderBlock is one planned message: text plus at most one attachment.
// Blocks are produced fresh for every pass and never persisted.
type RenderBlock struct {
	Content    string
	Attachment *Attachment
}

// HasAttachment reports whether the block requires an attachment.
func (b RenderBlock) HasAttachment() bool {
	return b.Attachment != nil
}

// SafeFileName maps name onto the characters chat platforms keep in upload
// filenames: ASCII letters, digits, '.', '-' and '_'. Everything else becomes
// '_', so the name read back from the surface equals the name sent.
func SafeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
