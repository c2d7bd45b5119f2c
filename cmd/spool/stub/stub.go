// Package stubcmder provides the stub command for running a local stub
// session server, useful for developing against spool without a backend.
package stubcmder

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/devserver"
	"github.com/papercomputeco/spool/pkg/logger"
)

const stubLongDesc string = `Run a local stub session server.

The stub speaks the same HTTP and SSE surface as a real session server:
session CRUD, message history, prompt submission, and per-session event
feeds. Replies are scripted echoes, streamed token by token, which makes it
handy for trying out "spool chat" offline.

Examples:
  spool stub
  spool stub --listen :9000
  SPOOL_SERVER_URL=http://localhost:9000 spool chat`

const stubShortDesc string = "Run a local stub session server"

type stubCommander struct {
	listen     string
	replyDelay time.Duration
	debug      bool
}

func NewStubCmd() *cobra.Command {
	cmder := &stubCommander{}

	cmd := &cobra.Command{
		Use:   "stub",
		Short: stubShortDesc,
		Long:  stubLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{
				config.FlagStubListen,
			})

			cmder.listen = v.GetString("stub.listen")

			cmder.debug, _ = cmd.Flags().GetBool("debug")
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagStubListen, &cmder.listen)
	cmd.Flags().DurationVar(&cmder.replyDelay, "reply-delay", 40*time.Millisecond, "Pause between streamed reply tokens")

	return cmd
}

func (c *stubCommander) run() error {
	log := logger.NewLogger(c.debug)
	defer func() { _ = log.Sync() }()

	srv := devserver.NewServer(devserver.Config{
		ListenAddr: c.listen,
		ReplyDelay: c.replyDelay,
	}, log)

	return srv.Run()
}
