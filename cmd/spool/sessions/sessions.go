// Package sessionscmder provides the sessions command for managing remote
// coding sessions from the terminal.
package sessionscmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/api"
	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/logger"
	"github.com/papercomputeco/spool/pkg/utils"
)

const sessionsLongDesc string = `Manage remote coding sessions.

Lists, creates, and deletes sessions on the configured session server.

Examples:
  spool sessions list
  spool sessions new "refactor the parser"
  spool sessions delete 0199adf3`

const sessionsShortDesc string = "Manage remote coding sessions"

type sessionsCommander struct {
	server string
	token  string
	debug  bool

	logger *zap.Logger
}

func NewSessionsCmd() *cobra.Command {
	cmder := &sessionsCommander{}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: sessionsShortDesc,
		Long:  sessionsLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{
				config.FlagServer,
				config.FlagToken,
			})

			cmder.server = v.GetString("server.url")
			cmder.token = v.GetString("server.token")

			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.logger = logger.NewLogger(cmder.debug)

			return nil
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.PersistentFlags().StringVarP(&cmder.server, "server", "s", defaults.Server.URL, "Session server URL")
	cmd.PersistentFlags().StringVar(&cmder.token, "token", "", "Bearer token for the session server")

	cmd.AddCommand(cmder.newListCmd())
	cmd.AddCommand(cmder.newNewCmd())
	cmd.AddCommand(cmder.newDeleteCmd())

	return cmd
}

func (c *sessionsCommander) client() (*api.Client, error) {
	headers := map[string]string{}
	if c.token != "" {
		headers["Authorization"] = "Bearer " + c.token
	}

	return api.NewClient(api.Config{
		URL:     c.server,
		Headers: headers,
		Logger:  c.logger,
	})
}

func (c *sessionsCommander) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions on the server",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}

			sessions, err := client.ListSessions(context.Background())
			if err != nil {
				return fmt.Errorf("listing sessions: %w", err)
			}

			if len(sessions) == 0 {
				fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No sessions."))
				return nil
			}

			fmt.Println()
			for _, session := range sessions {
				fmt.Printf("  %s  %s  %s\n",
					cliui.DimStyle.Render(utils.Truncate(session.ID, 16)),
					cliui.NameStyle.Render(session.Title),
					cliui.DimStyle.Render(session.UpdatedAt.Local().Format("2006-01-02 15:04")),
				)
			}
			fmt.Println()

			return nil
		},
	}
}

func (c *sessionsCommander) newNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new <title>",
		Short: "Create a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}

			session, err := client.CreateSession(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("creating session: %w", err)
			}

			fmt.Printf("\n  %s Created %s %s\n\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(session.Title),
				cliui.DimStyle.Render(session.ID),
			)

			return nil
		},
	}
}

func (c *sessionsCommander) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}

			if err := client.DeleteSession(context.Background(), args[0]); err != nil {
				return fmt.Errorf("deleting session: %w", err)
			}

			fmt.Printf("\n  %s Deleted %s\n\n",
				cliui.SuccessMark,
				cliui.DimStyle.Render(args[0]),
			)

			return nil
		},
	}
}
