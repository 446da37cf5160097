// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/envrun/envrun/internal/graph"

	"github.com/spf13/cobra"
)

func newDependsCommand(app *App, g *globalOptions) *cobra.Command {
	var sel selectFlags
	cmd := &cobra.Command{
		Use:   "depends",
		Short: "Show the execution order and dependency tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd, app, g, sel.options(), nil)
			if err != nil {
				return err
			}
			return printDepends(app.stdout, s.Graph())
		},
	}
	sel.register(cmd)
	return cmd
}

func printDepends(w io.Writer, gr *graph.Graph) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Execution order: %s\n", strings.Join(gr.Order(), ", "))
	b.WriteString("ALL\n")
	var walk func(name string, depth int)
	walk = func(name string, depth int) {
		b.WriteString(strings.Repeat("   ", depth) + name + "\n")
		for _, dep := range gr.Dependencies(name) {
			walk(dep, depth+1)
		}
	}
	for _, node := range gr.Nodes() {
		if node.Selected {
			walk(node.Env.Name(), 1)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
