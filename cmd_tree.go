package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"wikichat/api"
	"wikichat/config"
	"wikichat/tree"
)

func treeCmd() *cobra.Command {
	var siteID int64

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Inspect and reorder the collection tree (admin)",
	}
	cmd.PersistentFlags().Int64Var(&siteID, "site", 0, "site id (default site_id from the config)")

	cmd.AddCommand(treeShowCmd(&siteID), treeMoveCmd(&siteID))
	return cmd
}

func treeShowCmd(siteID *int64) *cobra.Command {
	var withDocuments bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the collection tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(false)
			if err != nil {
				return err
			}
			defer rt.closeLog()

			site, err := resolveSite(rt.cfg, *siteID)
			if err != nil {
				return err
			}
			remote, err := rt.client.CollectionTree(cmd.Context(), site, !withDocuments)
			if err != nil {
				return err
			}

			printTree(cmd.OutOrStdout(), toTreeNodes(remote))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&withDocuments, "documents", "d", false, "include documents")

	return cmd
}

func treeMoveCmd(siteID *int64) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "move <collection> <target> <top|middle|bottom>",
		Short: "Drop a collection onto another one",
		Long: `Move a collection relative to a target collection, the way a drag and
drop in the admin tree does: top places it before the target, bottom after
it, and middle makes it the target's last child.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := tree.ParsePosition(args[2])
			if err != nil {
				return err
			}
			collectionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid collection id %q: %w", args[0], err)
			}
			if _, err := strconv.ParseInt(args[1], 10, 64); err != nil {
				return fmt.Errorf("invalid target id %q: %w", args[1], err)
			}

			rt, err := setup(false)
			if err != nil {
				return err
			}
			defer rt.closeLog()

			site, err := resolveSite(rt.cfg, *siteID)
			if err != nil {
				return err
			}
			remote, err := rt.client.CollectionTree(cmd.Context(), site, true)
			if err != nil {
				return err
			}
			nodes := toTreeNodes(remote)

			plan, err := planMove(nodes, args[0], args[1], pos)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(out, "Would move %s under %s at position %d\n", args[0], parentLabel(plan.parentID), plan.position)
				printTree(out, plan.preview)
				return nil
			}

			rt.log.Info().
				Int64("collection_id", collectionID).
				Str("target_parent_id", plan.move.TargetParentID).
				Int("target_position", plan.position).
				Msg("moving collection")
			moved, err := rt.client.MoveCollection(cmd.Context(), site, collectionID, plan.parentID, plan.position)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Moved %q under %s at position %d\n", moved.Title, parentLabel(moved.ParentID), moved.Order)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "print the resulting tree without moving anything")

	return cmd
}

// movePlan is a resolved drop translated into the move endpoint's terms.
type movePlan struct {
	move     tree.Move
	parentID *int64
	position int
	preview  []tree.Node
}

func planMove(nodes []tree.Node, draggedID, targetID string, pos tree.Position) (movePlan, error) {
	m, err := tree.Resolve(nodes, draggedID, targetID, pos)
	if err != nil {
		return movePlan{}, err
	}
	preview, err := tree.Apply(nodes, m)
	if err != nil {
		return movePlan{}, err
	}

	plan := movePlan{move: m, position: tree.TargetPosition(nodes, m), preview: preview}
	if m.TargetParentID != "" {
		id, err := strconv.ParseInt(m.TargetParentID, 10, 64)
		if err != nil {
			return movePlan{}, fmt.Errorf("invalid parent id %q: %w", m.TargetParentID, err)
		}
		plan.parentID = &id
	}
	return plan, nil
}

func resolveSite(cfg *config.Config, flag int64) (int64, error) {
	if flag != 0 {
		return flag, nil
	}
	if cfg.SiteID != 0 {
		return cfg.SiteID, nil
	}
	return 0, errors.New("no site selected: pass --site or set site_id in the config")
}

// toTreeNodes converts the admin tree into reorder engine nodes.
func toTreeNodes(remote []api.CollectionNode) []tree.Node {
	if len(remote) == 0 {
		return nil
	}
	out := make([]tree.Node, len(remote))
	for i, n := range remote {
		kind := tree.KindCollection
		if n.Type == string(tree.KindDocument) {
			kind = tree.KindDocument
		}
		out[i] = tree.Node{
			ID:       strconv.FormatInt(n.ID, 10),
			Title:    n.Title,
			Kind:     kind,
			Children: toTreeNodes(n.Children),
		}
	}
	return out
}

func printTree(w io.Writer, nodes []tree.Node) {
	for _, n := range tree.Flatten(nodes) {
		marker := "+"
		if n.IsDocument() {
			marker = "-"
		}
		fmt.Fprintf(w, "%s%s %s (#%s)\n", strings.Repeat("  ", n.Depth), marker, n.Title, n.ID)
	}
}

func parentLabel(id *int64) string {
	if id == nil {
		return "the root"
	}
	return "#" + strconv.FormatInt(*id, 10)
}
