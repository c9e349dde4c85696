package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/records-crawler/internal/config"
	"github.com/JakeFAU/records-crawler/internal/crawler"
	"github.com/JakeFAU/records-crawler/internal/export"
)

// newInspectCmd creates the 'inspect' subcommand, which prints the records
// held in an export archive.
func newInspectCmd(cfgFile *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "inspect [archive.zip]",
		Short: "Prints the records in an export archive",
		Long: `Reads the given local archive, or the configured export archive when no
path is given, and prints its records. The last row is where a resumed crawl
would restart.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, source, err := readArchive(cmd, *cfgFile, args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records\n", source, len(records))
			if len(records) == 0 {
				return nil
			}
			renderRecords(cmd.OutOrStdout(), records, limit)
			fmt.Fprintf(cmd.OutOrStdout(), "Resume point: %s\n", records[len(records)-1].ID)
			return nil
		},
	}
	addExportFlags(cmd.Flags())
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records to print, 0 for all")
	return cmd
}

func readArchive(cmd *cobra.Command, cfgFile string, args []string) ([]crawler.Record, string, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, "", fmt.Errorf("read archive: %w", err)
		}
		records, err := export.ReadArchive(data)
		return records, args[0], err
	}

	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	store, closeStore, err := buildBlobStore(cmd.Context(), cfg.Export)
	if err != nil {
		return nil, "", err
	}
	defer closeStore()

	objectPath := export.ObjectPath(cfg.Export.Prefix, cfg.Export.Name)
	records, err := export.Load(cmd.Context(), store, objectPath)
	if err != nil {
		return nil, "", err
	}
	return records, objectPath, nil
}
