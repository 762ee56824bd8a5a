package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/collabgraph/internal/config"
	"github.com/rohankatakam/collabgraph/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and manage collabgraph configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for every command",
	RunE:  runConfigValidate,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the current configuration to .collabgraph/config.yaml",
	RunE:  runConfigInit,
}

var configSetTokenCmd = &cobra.Command{
	Use:   "set-token [github|gitlab|neo4j] [secret]",
	Short: "Store a token or password in the OS keychain",
	Long: `Stores a credential in the OS keychain. Environment variables still win
over the keychain, and the keychain over the config file.

Examples:
  collabgraph config set-token github ghp_...
  collabgraph config set-token neo4j s3cret`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSetToken,
}

var configDeleteTokenCmd = &cobra.Command{
	Use:   "delete-token [github|gitlab|neo4j]",
	Short: "Remove a credential from the OS keychain",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigDeleteToken,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetTokenCmd)
	configCmd.AddCommand(configDeleteTokenCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	shown := *cfg
	shown.GitHub.Token = config.MaskSecret(cfg.GitHub.Token)
	shown.GitLab.Token = config.MaskSecret(cfg.GitLab.Token)
	shown.Neo4j.Password = config.MaskSecret(cfg.Neo4j.Password)

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(&shown)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	failed := false
	for _, vc := range []config.ValidationContext{
		config.ValidationContextBuild,
		config.ValidationContextMerge,
		config.ValidationContextAnnotate,
		config.ValidationContextFetch,
		config.ValidationContextNeo4j,
	} {
		result := cfg.Validate(vc)
		status := "ok"
		if result.HasErrors() {
			status = "FAILED"
			failed = true
		}
		fmt.Printf("%-9s %s\n", vc, status)
		for _, e := range result.Errors {
			fmt.Printf("  error:   %s\n", e)
		}
		for _, w := range result.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	}
	if failed {
		return errors.ConfigError("configuration has errors")
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = filepath.Join(".collabgraph", "config.yaml")
	}
	if _, err := os.Stat(path); err == nil {
		return errors.ValidationErrorf("%s already exists", path)
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func keyringItem(name string) (string, error) {
	switch name {
	case "github":
		return config.KeyringGitHubTokenItem, nil
	case "gitlab":
		return config.KeyringGitLabTokenItem, nil
	case "neo4j":
		return config.KeyringNeo4jPasswordItem, nil
	}
	return "", errors.ValidationErrorf("unknown credential %q, want github, gitlab or neo4j", name)
}

func runConfigSetToken(cmd *cobra.Command, args []string) error {
	item, err := keyringItem(args[0])
	if err != nil {
		return err
	}
	km := config.NewKeyringManager()
	if !km.IsAvailable() {
		return errors.ConfigError("OS keychain is not available; set the environment variable instead")
	}
	if err := km.Set(item, args[1]); err != nil {
		return err
	}
	fmt.Printf("Stored %s credential %s in the OS keychain\n", args[0], config.MaskSecret(args[1]))
	return nil
}

func runConfigDeleteToken(cmd *cobra.Command, args []string) error {
	item, err := keyringItem(args[0])
	if err != nil {
		return err
	}
	if err := config.NewKeyringManager().Delete(item); err != nil {
		return err
	}
	fmt.Printf("Removed %s credential from the OS keychain\n", args[0])
	return nil
}
