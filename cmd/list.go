package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/giantswarm/foo-controller/internal/app"
	"github.com/giantswarm/foo-controller/internal/config"
	"github.com/giantswarm/foo-controller/internal/reconciler"
	foov1 "github.com/giantswarm/foo-controller/pkg/apis/foo/v1"
	"github.com/giantswarm/foo-controller/pkg/logging"
	pkgstrings "github.com/giantswarm/foo-controller/pkg/strings"
)

var (
	listOutputFormat string
	listNamespace    string
)

// listCmd prints the Foo objects found in the configured store.
var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List Foo objects and their status",
	Long: `List Foo objects from the configured store together with the status
written by the controller.

Examples:
  foo-controller list
  foo-controller list -n default -o json
  foo-controller list --config ./config.yaml`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	level := logging.LevelWarn
	if debug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, os.Stderr)

	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}

	s, err := app.OpenStore(ctx, settings.Store)
	if err != nil {
		return err
	}

	list, err := s.List(ctx, reconciler.FooKind)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", reconciler.FooKind, err)
	}

	foos, err := decodeFoos(list, listNamespace)
	if err != nil {
		return err
	}
	return renderFoos(cmd.OutOrStdout(), foos, listOutputFormat)
}

// decodeFoos converts and sorts the listed objects, keeping only those in
// namespace when it is set.
func decodeFoos(list *unstructured.UnstructuredList, namespace string) ([]foov1.Foo, error) {
	foos := make([]foov1.Foo, 0, len(list.Items))
	for i := range list.Items {
		item := &list.Items[i]
		if namespace != "" && item.GetNamespace() != namespace {
			continue
		}
		var foo foov1.Foo
		if err := runtime.DefaultUnstructuredConverter.FromUnstructured(item.Object, &foo); err != nil {
			return nil, fmt.Errorf("failed to decode Foo %s/%s: %w", item.GetNamespace(), item.GetName(), err)
		}
		foos = append(foos, foo)
	}

	sort.Slice(foos, func(i, j int) bool {
		if foos[i].Namespace != foos[j].Namespace {
			return foos[i].Namespace < foos[j].Namespace
		}
		return foos[i].Name < foos[j].Name
	})
	return foos, nil
}

func renderFoos(w io.Writer, foos []foov1.Foo, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(foos)
	case "table", "":
	default:
		return fmt.Errorf("unsupported output format %q (use table or json)", format)
	}

	if len(foos) == 0 {
		_, err := fmt.Fprintf(w, "%s\n", text.FgYellow.Sprint("No Foo objects found"))
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("NAMESPACE"),
		text.FgHiCyan.Sprint("NAME"),
		text.FgHiCyan.Sprint("INFO"),
		text.FgHiCyan.Sprint("BAD"),
		text.FgHiCyan.Sprint("LAST UPDATED"),
	})

	for _, foo := range foos {
		bad := text.FgHiBlack.Sprint("-")
		lastUpdated := text.FgHiBlack.Sprint("-")
		if foo.Status != nil {
			if foo.Status.IsBad {
				bad = text.FgRed.Sprint("true")
			} else {
				bad = text.FgGreen.Sprint("false")
			}
			if foo.Status.LastUpdated != nil {
				lastUpdated = foo.Status.LastUpdated.UTC().Format("2006-01-02T15:04:05Z")
			}
		}

		info := pkgstrings.Truncate(foo.Spec.Info, pkgstrings.DefaultColumnWidth)
		t.AppendRow(table.Row{foo.Namespace, foo.Name, info, bad, lastUpdated})
	}

	t.AppendFooter(table.Row{"", "", "", text.FgHiBlue.Sprint("Total"), len(foos)})
	t.Render()
	return nil
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listOutputFormat, "output", "o", "table", "Output format (table, json)")
	listCmd.Flags().StringVarP(&listNamespace, "namespace", "n", "", "Only list objects in this namespace")
}
