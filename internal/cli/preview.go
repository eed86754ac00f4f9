package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rollcall/internal/config"
	"github.com/roach88/rollcall/internal/engine"
	"github.com/roach88/rollcall/internal/store"
)

// PreviewBlock is one planned message.
type PreviewBlock struct {
	Index      int    `json:"index"`
	Content    string `json:"content"`
	Attachment string `json:"attachment,omitempty"`
}

// Preview is the output of the preview command.
type Preview struct {
	CommunityID string         `json:"community_id"`
	Groups      int            `json:"groups"`
	Members     int            `json:"members"`
	Blocks      []PreviewBlock `json:"blocks"`
}

// Text renders each block with a numbered header line.
func (p Preview) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d blocks (%d groups, %d members)\n", len(p.Blocks), p.Groups, p.Members)
	for _, blk := range p.Blocks {
		fmt.Fprintf(&b, "\n--- [%d]", blk.Index)
		if blk.Attachment != "" {
			fmt.Fprintf(&b, " +%s", blk.Attachment)
		}
		fmt.Fprintf(&b, "\n%s\n", blk.Content)
	}
	return b.String()
}

// NewPreviewCommand creates the preview command.
func NewPreviewCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <community-id>",
		Short: "Print the planned display without touching Discord",
		Long: `Render the roster into the blocks a reconciliation pass would place,
in order, without reading or writing any channel.

Examples:
  rollcall preview 123456789012345678
  rollcall preview 123456789012345678 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runPreview(opts *RootOptions, communityID string, cmd *cobra.Command) error {
	return withStore(opts, func(cfg *config.Config, st *store.Store) error {
		logger := newLogger(cmd, opts, cfg)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		snap, err := st.Snapshot(ctx, communityID)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read roster", err)
		}

		planner := engine.NewPlanner(engine.Layout{
			Title:       cfg.Display.Title,
			BannerImage: cfg.Display.BannerImage,
		}, logger)

		p := Preview{
			CommunityID: communityID,
			Groups:      len(snap.Groups),
			Members:     snap.MemberCount(),
			Blocks:      []PreviewBlock{},
		}
		for i, blk := range planner.Plan(snap) {
			pb := PreviewBlock{Index: i, Content: blk.Content}
			if blk.Attachment != nil {
				pb.Attachment = blk.Attachment.Name
			}
			p.Blocks = append(p.Blocks, pb)
		}

		return formatter(cmd, opts).Success(p)
	})
}
