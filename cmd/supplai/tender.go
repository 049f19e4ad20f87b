package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Capeo/SupplAI/internal/extractor"
	"github.com/Capeo/SupplAI/internal/storage"
	"github.com/Capeo/SupplAI/internal/utils"
)

var tenderCmd = &cobra.Command{
	Use:   "tender",
	Short: "Manage tender documents in object storage",
}

var tenderUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a tender document and print its key for use as tenderKey",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tenderUpload(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(tenderCmd)
	tenderCmd.AddCommand(tenderUploadCmd)

	tenderUploadCmd.Flags().String("key", "", "object key (default tenders/<id>/<filename>)")
}

func tenderUpload(cmd *cobra.Command, path string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.S3.Endpoint == "" {
		return errors.New("s3.endpoint is not configured")
	}

	doc, err := readDocument(path)
	if err != nil {
		return err
	}
	contentType := extractor.DetectContentType(doc.Filename, "", doc.Data)
	if !extractor.IsSupported(contentType) {
		return fmt.Errorf("%s is not a supported tender document", path)
	}

	key, _ := cmd.Flags().GetString("key")
	if key == "" {
		key = fmt.Sprintf("tenders/%s/%s", utils.GenerateID(), filepath.Base(path))
	}

	store, err := storage.NewS3Storage(cmd.Context(), cfg.S3)
	if err != nil {
		return err
	}
	if err := store.Upload(cmd.Context(), key, doc.Data, contentType); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), key)
	return nil
}
