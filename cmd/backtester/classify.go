package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"optionlab/internal/config"
	"optionlab/internal/options"
)

func classifyCmd() *cobra.Command {
	var (
		legsPath string
		list     bool
	)
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Name the strategy formed by the legs in a leg file",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if list {
				for _, name := range options.Catalog() {
					fmt.Fprintln(out, name)
				}
				return nil
			}
			if legsPath == "" {
				return fmt.Errorf("--legs is required")
			}
			_, legs, err := config.LoadLegs(legsPath)
			if err != nil {
				return err
			}
			c := options.Classify(legs)
			fmt.Fprintf(out, "Strategy:    %s\n", c.Name)
			fmt.Fprintf(out, "Category:    %s\n", c.Category)
			fmt.Fprintf(out, "Risk:        %s\n", c.Risk)
			fmt.Fprintf(out, "Confidence:  %d%%\n", c.Confidence)
			return nil
		},
	}
	cmd.Flags().StringVarP(&legsPath, "legs", "l", "", "YAML leg file")
	cmd.Flags().BoolVar(&list, "list", false, "list every recognized strategy name")
	return cmd
}
