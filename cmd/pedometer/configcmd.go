package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/taigrr/pedometer/config"
)

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := config.NewLoader(configPath)
			if err != nil {
				return err
			}
			if _, err := loader.Config(); err != nil {
				return err
			}
			out, err := yaml.Marshal(loader.Settings())
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			w := cmd.OutOrStdout()
			if f := loader.File(); f != "" {
				fmt.Fprintf(w, "# %s\n", f)
			} else {
				fmt.Fprintln(w, "# defaults")
			}
			_, err = w.Write(out)
			return err
		},
	}
}
