package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/frahmantamala/admin-console/internal"
	"github.com/frahmantamala/admin-console/internal/user"
	"github.com/frahmantamala/admin-console/pkg/logger"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	seedUsername string
	seedPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the first admin user",
	Long:  `Create the first admin through the backend's create_user procedure. Refuses to run once any user exists.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		logger.Init(cfg.Logging.Env, cfg.Logging.Level)
		lg := logger.L()

		if cfg.Backend.Driver == internal.BackendDriverMemory {
			log.Fatalf("the memory driver seeds its admin at server start; set backend.memory.admin_username and admin_password instead")
		}

		client, closeFn, err := initBackend(cfg.Backend, lg)
		if err != nil {
			log.Fatalf("failed to init backend: %v", err)
		}
		defer closeFn()

		password := seedPassword
		if password == "" {
			password, err = readPassword(fmt.Sprintf("Password for %s: ", seedUsername))
			if err != nil {
				log.Fatalf("failed to read password: %v", err)
			}
		}

		svc := user.NewService(client, nil, cfg.Backend.Timeout, lg)
		id, err := svc.CreateInitialAdmin(context.Background(), seedUsername, password)
		if err != nil {
			log.Fatalf("failed to create admin: %v", err)
		}

		fmt.Printf("Seeded admin user %s with id %d\n", seedUsername, id)
	},
}

// readPassword reads without echo from a terminal and falls back to a plain line for pipes.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	seedCmd.Flags().StringVarP(&seedUsername, "username", "u", "admin", "username of the first admin")
	seedCmd.Flags().StringVarP(&seedPassword, "password", "p", "", "password of the first admin; prompted for when empty")
}
