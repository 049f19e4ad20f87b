package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/Capeo/SupplAI/internal/models"
	"github.com/Capeo/SupplAI/internal/utils"
)

var errAnalysisFailed = errors.New("analysis did not succeed")

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a tender response and print the result as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return analyze(cmd)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().String("tender", "", "path to the tender document (pdf, docx or txt)")
	analyzeCmd.Flags().String("tender-key", "", "object key of the tender in the tender bucket")
	analyzeCmd.Flags().String("response", "", "path to the tender response document")
	analyzeCmd.Flags().StringP("company", "c", "", "name of the responding company")
	analyzeCmd.Flags().Bool("compact", false, "print the result on a single line")

	_ = analyzeCmd.MarkFlagRequired("response")
	analyzeCmd.MarkFlagsMutuallyExclusive("tender", "tender-key")
	analyzeCmd.MarkFlagsOneRequired("tender", "tender-key")
}

func analyze(cmd *cobra.Command) error {
	flags := cmd.Flags()
	tenderPath, _ := flags.GetString("tender")
	tenderKey, _ := flags.GetString("tender-key")
	responsePath, _ := flags.GetString("response")
	company, _ := flags.GetString("company")
	compact, _ := flags.GetBool("compact")

	company = strings.TrimSpace(company)
	if company == "" {
		var err error
		if company, err = promptCompany(); err != nil {
			return err
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// stdout carries only the result.
	logger, err := utils.NewStderrLogger(cfg.Log.Level, "console")
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Pipeline.Timeout)
	defer cancel()

	application, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	var tender *models.Document
	if tenderKey != "" {
		if application.storage == nil {
			return errors.New("--tender-key requires s3.endpoint to be configured")
		}
		if tender, err = application.storage.Fetch(ctx, tenderKey, cfg.Server.MaxUploadSize); err != nil {
			return err
		}
	} else if tender, err = readDocument(tenderPath); err != nil {
		return err
	}

	response, err := readDocument(responsePath)
	if err != nil {
		return err
	}

	result, err := application.service.Analyze(ctx, models.AnalysisRequest{
		Tender:      *tender,
		Response:    *response,
		CompanyName: company,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if !compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(result); err != nil {
		return err
	}

	if !result.Success {
		return errAnalysisFailed
	}
	return nil
}

func readDocument(path string) (*models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return &models.Document{Data: data, Filename: filepath.Base(path)}, nil
}

// promptCompany asks for the company name when running in a terminal.
func promptCompany() (string, error) {
	if info, err := os.Stdin.Stat(); err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return "", errors.New("--company is required")
	}

	prompt := promptui.Prompt{
		Label: "Company name",
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("company name cannot be empty")
			}
			return nil
		},
	}
	company, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(company), nil
}
