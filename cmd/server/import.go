package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"quizzems/internal/auth"
	"quizzems/internal/collection"
	"quizzems/internal/config"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE...",
		Short: "Import collections from YAML files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			importer := collection.NewImporter(collection.NewRepository(a.db), auth.NewRepository(a.db))
			for _, path := range args {
				colls, err := importer.ImportFile(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("import %s: %w", path, err)
				}
				for _, c := range colls {
					log.Printf("Imported collection %s (%s, %d items)", c.ID, c.Category, len(c.Items))
				}
			}
			return nil
		},
	}
}
