package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/japaniel/syllabler/pkg/overrides"
	"github.com/spf13/cobra"
)

func (a *app) overridesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overrides",
		Short: "Manage the word to syllable-count override table",
	}
	cmd.AddCommand(a.overridesImportCmd())
	cmd.AddCommand(a.overridesExportCmd())
	cmd.AddCommand(a.overridesNormalizeCmd())
	cmd.AddCommand(a.overridesFetchCmd())
	return cmd
}

func (a *app) overridesImportCmd() *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "import CSV",
		Short: "Load an override CSV into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := overrides.LoadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to load overrides: %w", err)
			}
			conn, err := a.openDB()
			if err != nil {
				return err
			}
			defer conn.Close()

			n, err := overrides.NewImporter(conn, a.logger).Import(cmd.Context(), t, replace)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d overrides.\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Delete stored overrides missing from the file")
	return cmd
}

func (a *app) overridesExportCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored overrides as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.openDB()
			if err != nil {
				return err
			}
			defer conn.Close()

			t, err := overrides.NewImporter(conn, a.logger).LoadFromDB()
			if err != nil {
				return err
			}
			if outPath == "" {
				return overrides.Write(cmd.OutOrStdout(), t)
			}

			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := overrides.Write(f, t); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d overrides to %s.\n", len(t), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func (a *app) overridesNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize [CSV]",
		Short: "Rewrite an override CSV sorted, lower-cased and deduplicated",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Overrides.Path
			if len(args) == 1 {
				path = args[0]
			}
			t, err := overrides.NormalizeAndPersist(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Normalized %d overrides in %s.\n", len(t), path)
			return nil
		},
	}
}

func (a *app) overridesFetchCmd() *cobra.Command {
	var rawURL string
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the override CSV if it is not present locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rawURL == "" {
				rawURL = a.cfg.Overrides.URL
			}
			if rawURL == "" {
				return errors.New("no --url given and overrides.url not configured")
			}
			path := a.cfg.Overrides.Path
			if err := overrides.EnsureOverrides(cmd.Context(), path, rawURL, a.logger); err != nil {
				return err
			}
			t, err := overrides.LoadFile(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d overrides available at %s.\n", len(t), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&rawURL, "url", "", "Download URL (default from config)")
	return cmd
}
