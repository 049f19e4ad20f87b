package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Capeo/SupplAI/internal/config"
	"github.com/Capeo/SupplAI/internal/registry"
	"github.com/Capeo/SupplAI/internal/utils"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Manage the local mirror of the approved staffing company register",
}

var registryImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import company names, one per line, optionally followed by ;<org number>",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return registryImport(cmd, args[0])
	},
}

var registryCheckCmd = &cobra.Command{
	Use:   "check <company>",
	Short: "Report whether a company is an approved staffing company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return registryCheck(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryImportCmd)
	registryCmd.AddCommand(registryCheckCmd)
}

func registryImport(cmd *cobra.Command, path string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := utils.NewStderrLogger(cfg.Log.Level, "console")
	if err != nil {
		return err
	}
	defer logger.Sync()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	companies, err := parseCompanies(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	a := &application{}
	defer a.Close()

	register, err := a.openRegister(cfg)
	if err != nil {
		return err
	}

	n, err := register.Import(cmd.Context(), companies)
	if err != nil {
		return err
	}

	if rdb := a.openRedis(cmd.Context(), cfg.Redis, logger); rdb != nil {
		cache := registry.NewCachingLookup(rdb, cfg.Redis.TTL, register, "", logger)
		if err := cache.Invalidate(cmd.Context()); err != nil {
			logger.Warn("failed to invalidate status cache", zap.Error(err))
		}
	}

	logger.Info("register imported", zap.String("database", cfg.Registry.Database), zap.Int("companies", n))
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d companies\n", n)
	return nil
}

func registryCheck(cmd *cobra.Command, company string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := utils.NewStderrLogger(cfg.Log.Level, "console")
	if err != nil {
		return err
	}
	defer logger.Sync()

	a := &application{}
	defer a.Close()

	lookup, err := a.newLookup(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	approved, err := lookup.Lookup(cmd.Context(), company)
	if err != nil {
		return err
	}

	status := "not approved"
	if approved {
		status = "approved"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s registry)\n", company, status, cfg.Registry.Mode)
	if cfg.Registry.Mode == config.RegistryStatic {
		fmt.Fprintln(cmd.ErrOrStderr(), "note: the static registry only knows", registry.ReferenceApprovedCompany)
	}
	return nil
}

// parseCompanies reads "Name" or "Name;OrgNumber" lines. Blank lines and
// lines starting with # are skipped.
func parseCompanies(r io.Reader) ([]registry.Company, error) {
	var companies []registry.Company
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, org, _ := strings.Cut(line, ";")
		companies = append(companies, registry.Company{
			Name:      strings.TrimSpace(name),
			OrgNumber: strings.TrimSpace(org),
		})
	}
	return companies, scanner.Err()
}
