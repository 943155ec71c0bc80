// manifestgen writes the lazy-mode tool manifest from the compiled-in
// handler set, so the manifest on disk can never drift from the binary:
// regenerate it whenever the built-in catalog changes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"netgate/internal/controller"
	"netgate/internal/handlers"
)

func main() {
	var out string

	cmd := &cobra.Command{
		Use:   "manifestgen",
		Short: "Generate the tool manifest from the built-in handler set",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Descriptors only; the simulator is never called.
			source := handlers.NewBuiltinSource(controller.NewSimulator())
			m := source.Manifest()
			if err := m.Write(out); err != nil {
				return err
			}
			fmt.Printf("wrote %d tools to %s\n", len(m.Tools), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "config/manifest.yaml", "Output manifest path")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
