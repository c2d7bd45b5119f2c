// Package spoolcmder
package spoolcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/spool/cmd/spool/chat"
	configcmder "github.com/papercomputeco/spool/cmd/spool/config"
	sessionscmder "github.com/papercomputeco/spool/cmd/spool/sessions"
	stubcmder "github.com/papercomputeco/spool/cmd/spool/stub"
	versioncmder "github.com/papercomputeco/spool/cmd/version"
)

const spoolLongDesc string = `Spool is a terminal client for remote AI coding sessions.

Talk to a running session server:
  spool chat           Stream an interactive conversation
  spool sessions       List, create, and delete sessions

Work offline against a local stub:
  spool stub           Run a local stub session server`

const spoolShortDesc string = "Spool - remote coding session client"

func NewSpoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spool",
		Short: spoolShortDesc,
		Long:  spoolLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .spool/ config directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(sessionscmder.NewSessionsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(stubcmder.NewStubCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
