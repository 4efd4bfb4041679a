package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sitecopy/api/internal/content"
	"sitecopy/api/internal/store"
)

var (
	contentFormat string
	contentOut    string
)

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Export or replace the committed content document",
}

var contentDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Write the committed document as JSON or YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := formatFor(contentOut, contentFormat)
		if err != nil {
			return err
		}
		db, dialect, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		record, err := store.NewContentStore(db, dialect).Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("load content: %w", err)
		}
		raw, err := encodeDocument(record.Document, format)
		if err != nil {
			return err
		}
		if contentOut == "" {
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		}
		if err := os.WriteFile(contentOut, raw, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", contentOut, err)
		}
		logger.Info("content dumped", zap.String("file", contentOut), zap.Time("updated_at", record.UpdatedAt))
		return nil
	},
}

var contentImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the committed document with the contents of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := formatFor(args[0], contentFormat)
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		doc, err := decodeDocument(raw, format)
		if err != nil {
			return err
		}

		db, dialect, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		if err := store.ApplyMigrations(cmd.Context(), db, dialect); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
		savedAt, err := store.NewContentStore(db, dialect).Save(cmd.Context(), doc)
		if err != nil {
			return err
		}
		logger.Info("content imported",
			zap.String("file", args[0]),
			zap.Int("fragments", len(content.Fragments(doc))),
			zap.Time("saved_at", savedAt),
		)
		return nil
	},
}

func init() {
	contentCmd.PersistentFlags().StringVar(&contentFormat, "format", "", "json or yaml (default: from file extension, else json)")
	contentDumpCmd.Flags().StringVarP(&contentOut, "out", "o", "", "Write to file instead of stdout")
	contentCmd.AddCommand(contentDumpCmd, contentImportCmd)
}
