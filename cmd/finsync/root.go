package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/finsync"
	"github.com/unkn0wn-root/finsync/config"
	"github.com/unkn0wn-root/finsync/jsonapi"
)

// app is the state shared by all commands of one invocation.
type app struct {
	out     io.Writer
	log     *zap.Logger
	shared  *finsync.Shared
	session *finsync.Session
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}
	root := &cobra.Command{
		Use:           "finsync",
		Short:         "Sync and inspect a finance dashboard backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close(cmd)
		},
	}
	root.SetOut(out)
	root.AddCommand(a.pageCmd(), a.listCmd(), a.getCmd(), a.categoryCmd())
	return root
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.log, err = cfg.NewLogger()
	if err != nil {
		return err
	}
	a.shared, err = cfg.NewShared(cmd.Context(), nil, nil)
	if err != nil {
		return err
	}
	opts, err := cfg.SessionOptions(a.log, nil, a.shared)
	if err != nil {
		return err
	}
	a.session, err = finsync.New(opts)
	return err
}

func (a *app) close(cmd *cobra.Command) error {
	var errs []error
	if a.shared != nil {
		errs = append(errs, a.shared.Close(cmd.Context()))
	}
	if a.log != nil {
		// stderr sync fails on some platforms; ignore
		_ = a.log.Sync()
	}
	return errors.Join(errs...)
}

func (a *app) pageCmd() *cobra.Command {
	var pages int
	var class string
	cmd := &cobra.Command{
		Use:   "page <collection>",
		Short: "Load pages of a paginated collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection := args[0]
			if class == "" {
				class = classOf(collection)
			}
			p := a.session.Pager(collection, class)
			for range pages {
				res, err := p.Load(cmd.Context())
				if err != nil {
					return err
				}
				a.log.Debug("page loaded", zap.String("collection", collection), zap.Int("added", res.Added), zap.Int("offset", res.Offset))
				if res.Added == 0 {
					break
				}
			}
			return a.print(p.List().Read())
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to load")
	cmd.Flags().StringVar(&class, "class", "", "resource class of the items (default: derived from collection)")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <collection>",
		Short: "Load a whole collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l := a.session.Loader(args[0])
			if _, err := l.Load(cmd.Context()); err != nil {
				return err
			}
			return a.print(sorted(l.Cache().Read()))
		},
	}
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> <id>",
		Short: "Look up one resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.session.Resolver(classOf(args[0])).Lookup(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return a.print(r)
		},
	}
}

func (a *app) categoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Create or update categories",
	}

	var title, parent string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.session.Categories().Create(cmd.Context(), title, parent)
			if err != nil {
				return err
			}
			return a.print(r)
		},
	}
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.session.Categories().Update(cmd.Context(), args[0], title, parent)
			if err != nil {
				return err
			}
			return a.print(r)
		},
	}
	for _, c := range []*cobra.Command{create, update} {
		c.Flags().StringVar(&title, "title", "", "category title")
		c.Flags().StringVar(&parent, "parent", "", "parent category id")
		_ = c.MarkFlagRequired("title")
	}
	cmd.AddCommand(create, update)
	return cmd
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// classOf maps a collection to the class of its items.
func classOf(collection string) string {
	if strings.EqualFold(collection, finsync.CollectionUncategorised) {
		return finsync.ClassTransactions
	}
	return collection
}

func sorted(m map[string]jsonapi.Resource) []jsonapi.Resource {
	out := make([]jsonapi.Resource, 0, len(m))
	for _, id := range slices.Sorted(maps.Keys(m)) {
		out = append(out, m[id])
	}
	return out
}
