package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"glossvideo/internal/config"
	"glossvideo/internal/upload"
	"glossvideo/internal/videopath"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var roleFlag string
	var sideFlag string
	var offsetFlag int
	var actorFlag string

	cmd := &cobra.Command{
		Use:   "upload <entry-id> <file>",
		Short: "Store a video for an entry",
		Long: "Converts the file to the canonical format when needed, retires the video currently\n" +
			"holding the role and places the new one at its derived path with poster and small companions.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := parseRole(roleFlag, sideFlag, offsetFlag)
			if err != nil {
				return err
			}
			source, err := config.ExpandPath(args[1])
			if err != nil {
				return err
			}
			return ctx.withServices(func(s *services) error {
				entry, err := s.entry(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				service := upload.New(s.cfg, s.store, s.normalizer(), s.logger)
				asset, err := service.Upload(cmd.Context(), entry.ID, role, source, actorFlag)
				if err != nil {
					return err
				}
				view := newAssetView(asset)
				if ctx.jsonOutput() {
					return writeJSON(cmd, view)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %s video %d at %s\n", view.Role, view.ID, view.Path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&roleFlag, "role", "primary", "Role of the video: primary, perspective or nme")
	cmd.Flags().StringVar(&sideFlag, "side", "", "Side for perspective and nme videos: left, right or center")
	cmd.Flags().IntVar(&offsetFlag, "offset", 0, "Position of an nme video")
	cmd.Flags().StringVar(&actorFlag, "actor", "cli", "Name recorded on the upload event")
	return cmd
}

func parseRole(kindValue, sideValue string, offset int) (videopath.Role, error) {
	kind, err := videopath.ParseKind(kindValue)
	if err != nil {
		return videopath.Role{}, err
	}
	side, err := videopath.ParseSide(sideValue)
	if err != nil {
		return videopath.Role{}, err
	}
	var role videopath.Role
	switch kind {
	case videopath.KindPrimary:
		role = videopath.Primary()
	case videopath.KindPerspective:
		role = videopath.Perspective(side)
	case videopath.KindNME:
		role = videopath.NME(offset, side)
	default:
		role = videopath.Role{Kind: kind}
	}
	if kind != videopath.KindNME && offset != 0 {
		return role, fmt.Errorf("--offset only applies to nme videos")
	}
	if kind == videopath.KindPrimary && strings.TrimSpace(sideValue) != "" {
		return role, fmt.Errorf("--side does not apply to primary videos")
	}
	return role, role.Validate(0)
}
