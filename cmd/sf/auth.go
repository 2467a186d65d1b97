package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// secretKeys are the environment entries sf auth manages, in prompt order.
var secretKeys = []struct {
	key   string
	label string
}{
	{"DISCORD_BOT_TOKEN", "Discord bot token"},
	{"SLACK_BOT_TOKEN", "Slack bot token (xoxb-...)"},
	{"SLACK_APP_TOKEN", "Slack app token (xapp-...)"},
	{"MYSQL_PASSWORD", "MySQL password"},
}

func newAuthCmd() *cobra.Command {
	var envPath string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Store platform secrets in a .env file",
		Long:  "Prompts for bot tokens without echoing and writes them to .env. Empty input keeps the existing value.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuth(cmd, envPath)
		},
	}

	cmd.Flags().StringVar(&envPath, "env", ".env", "path to the .env file")
	return cmd
}

func runAuth(cmd *cobra.Command, envPath string) error {
	existing, err := godotenv.Read(envPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("read %s: %w", envPath, err)
		}
		existing = map[string]string{}
	}

	out := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())
	for _, s := range secretKeys {
		state := "unset"
		if existing[s.key] != "" {
			state = "set"
		}
		fmt.Fprintf(out, "%s [%s]: ", s.label, state)
		value, err := readSecret(cmd, reader)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		if value != "" {
			existing[s.key] = value
		}
	}

	if err := godotenv.Write(existing, envPath); err != nil {
		return fmt.Errorf("write %s: %w", envPath, err)
	}
	if err := os.Chmod(envPath, 0o600); err != nil {
		return fmt.Errorf("chmod %s: %w", envPath, err)
	}
	fmt.Fprintf(out, "secrets written to %s\n", envPath)
	return nil
}

// readSecret reads one secret from the command's stdin. On a real terminal
// input is not echoed; piped input (tests, scripts) is read as a plain line.
func readSecret(cmd *cobra.Command, reader *bufio.Reader) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", nil
	}
	return strings.TrimSpace(line), nil
}
