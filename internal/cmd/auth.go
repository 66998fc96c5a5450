package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/strrl/meetscope/internal/credentials"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Gemini API key",
	Long: `Store the Gemini API key in the operating system keyring. The key is
looked up in this order: GEMINI_API_KEY, gemini.api_key in the config file,
the keyring.`,
}

var authSetKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Save the Gemini API key to the keyring",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := readAPIKey(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if err := credentials.NewStore().Save(key); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved API key %s to the keyring\n", credentials.Mask(key))
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which API key would be used",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		key, source, err := credentials.NewStore().Resolve(cfg.Gemini.APIKey)
		if errors.Is(err, credentials.ErrNoCredential) {
			fmt.Fprintln(cmd.OutOrStdout(), "No API key configured")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "API key %s (from %s)\n", credentials.Mask(key), source)
		return nil
	},
}

var authClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the API key from the keyring",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := credentials.NewStore().Delete(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Removed API key from the keyring")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetKeyCmd, authStatusCmd, authClearCmd)
}

// readAPIKey prompts without echo on a terminal and reads a single line
// otherwise, so keys can be piped in.
func readAPIKey(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Gemini API key: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read api key: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read api key: %w", err)
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return "", errors.New("api key is empty")
	}
	return key, nil
}
