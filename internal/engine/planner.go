package engine

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/roach88/rollcall/internal/roster"
)

// Layout ornaments.
const (
	ornament     = "⫘"
	ruleChar     = "▒"
	ruleWidth    = 48
	fillWidth    = 139
	blankLine    = "** **"
	DefaultTitle = "R O L L C A L L"
)

// urlPattern matches profile references rendered as auto-links.
var urlPattern = regexp.MustCompile(`https?://[\w.-]+`)

// Layout holds the configurable parts of the rendered roster.
type Layout struct {
	// Title is shown in the banner title block.
	Title string

	// BannerImage is a path to the image attached to the first banner block.
	// Empty means no attachment.
	BannerImage string
}

// Planner turns roster snapshots into render blocks.
type Planner struct {
	layout Layout
	logger *slog.Logger
}

// NewPlanner creates a planner. An empty title falls back to DefaultTitle.
func NewPlanner(layout Layout, logger *slog.Logger) *Planner {
	if layout.Title == "" {
		layout.Title = DefaultTitle
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Planner{layout: layout, logger: logger}
}

// Plan renders a snapshot into the ordered block sequence:
//
//	banner (with attachment), banner, title,
//	for each group: [separator,] header, member lines...,
//	trailing separator (when any group exists)
//
// Member line numbers are 1-based and run across the whole roster.
// The banner image is read on every call; if it cannot be read the first
// block is emitted without it.
func (p *Planner) Plan(snap roster.Snapshot) []RenderBlock {
	fill := strings.Repeat(".", fillWidth)

	blocks := []RenderBlock{
		{Content: fill, Attachment: p.bannerAttachment()},
		{Content: fill},
		{Content: titleBlock(p.layout.Title)},
	}

	index := 1
	for i, entry := range snap.Groups {
		if i > 0 {
			blocks = append(blocks, RenderBlock{Content: separatorBlock()})
		}
		blocks = append(blocks, RenderBlock{Content: headerBlock(entry.Group.Name)})

		for _, m := range entry.Members {
			blocks = append(blocks, RenderBlock{Content: memberLine(index, m)})
			index++
		}
	}

	if len(snap.Groups) > 0 {
		blocks = append(blocks, RenderBlock{Content: separatorBlock()})
	}

	return blocks
}

func (p *Planner) bannerAttachment() *Attachment {
	if p.layout.BannerImage == "" {
		return nil
	}
	data, err := os.ReadFile(p.layout.BannerImage)
	if err != nil {
		p.logger.Warn("banner image unavailable, sending banner without it",
			"path", p.layout.BannerImage, "error", err)
		return nil
	}
	return &Attachment{Name: SafeFileName(filepath.Base(p.layout.BannerImage)), Data: data}
}

func rule() string {
	return strings.Repeat(ruleChar, ruleWidth)
}

func titleBlock(title string) string {
	frame := strings.Repeat(ornament, 7)
	return fmt.Sprintf("%s **%s** %s\n\n%s\n%s", frame, title, frame, rule(), blankLine)
}

func separatorBlock() string {
	return blankLine + "\n" + rule() + "\n" + blankLine
}

func headerBlock(name string) string {
	frame := strings.Repeat(ornament, 9)
	return fmt.Sprintf("%s `%s` %s", frame, name, frame)
}

func memberLine(index int, m roster.Member) string {
	return fmt.Sprintf("%d. %s - %s - %s", index, mention(m.PersonID), m.ProfileName, profileLink(m.ProfileReference))
}

func mention(personID string) string {
	return "<@" + personID + ">"
}

// profileLink wraps URL-like references in auto-link brackets.
func profileLink(ref string) string {
	if urlPattern.MatchString(ref) {
		return "<" + ref + ">"
	}
	return ref
}
