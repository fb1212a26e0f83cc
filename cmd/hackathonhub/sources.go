package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"hackathonhub.shikanime.studio/internal/hackathon"
	"hackathonhub.shikanime.studio/internal/hub"
	"hackathonhub.shikanime.studio/internal/ingest"
)

var (
	sourcesCmd = &cobra.Command{
		Use:   "sources",
		Short: "Manage hackathon sources",
	}
	sourcesListCmd = &cobra.Command{
		Use:   "list",
		Short: "List configured sources",
		Args:  cobra.NoArgs,
		RunE:  runSourcesList,
	}
	sourcesFetchCmd = &cobra.Command{
		Use:   "fetch [provider]",
		Short: "Fetch one source, or every active source with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSourcesFetch,
	}
	sourcesImportCmd = &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create or update sources from a YAML seed file",
		Args:  cobra.ExactArgs(1),
		RunE:  runSourcesImport,
	}
)

func init() {
	sourcesFetchCmd.Flags().Bool("all", false, "Fetch every active source")
	sourcesCmd.AddCommand(sourcesListCmd, sourcesFetchCmd, sourcesImportCmd)
}

func runSourcesList(cmd *cobra.Command, _ []string) error {
	h, err := hub.NewForConfig(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer h.Close()
	srcs, err := h.Sources().List(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), srcs)
}

func runSourcesFetch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()
	all, _ := cmd.Flags().GetBool("all")
	if all == (len(args) == 1) {
		return errors.New("pass either a provider or --all")
	}

	h, err := hub.NewForConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer h.Close()

	var outcomes []ingest.Outcome
	if all {
		outcomes, err = h.Sources().FetchAll(ctx)
	} else {
		var o ingest.Outcome
		o, err = h.Sources().FetchFromSource(ctx, hackathon.ParseProvider(args[0]))
		outcomes = []ingest.Outcome{o}
	}
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), outcomes); err != nil {
		return err
	}
	for _, o := range outcomes {
		if !o.Success {
			return fmt.Errorf("%s: %s", o.Provider, o.Message)
		}
	}
	return nil
}

func runSourcesImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	h, err := hub.NewForConfig(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer h.Close()

	srcs, err := h.Sources().Import(cmd.Context(), f)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), srcs)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
