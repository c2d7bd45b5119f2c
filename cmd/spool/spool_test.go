package spoolcmder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	spoolcmder "github.com/papercomputeco/spool/cmd/spool"
)

var _ = Describe("NewSpoolCmd", func() {
	It("creates the root command", func() {
		cmd := spoolcmder.NewSpoolCmd()
		Expect(cmd.Use).To(Equal("spool"))
	})

	It("registers the subcommands", func() {
		cmd := spoolcmder.NewSpoolCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("chat", "sessions", "config", "stub", "version"))
	})

	It("has the global --debug flag", func() {
		cmd := spoolcmder.NewSpoolCmd()
		flag := cmd.PersistentFlags().Lookup("debug")
		Expect(flag).NotTo(BeNil())
		Expect(flag.Shorthand).To(Equal("d"))
	})

	It("has the global --config-dir flag", func() {
		cmd := spoolcmder.NewSpoolCmd()
		flag := cmd.PersistentFlags().Lookup("config-dir")
		Expect(flag).NotTo(BeNil())
	})
})
