package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --server
// on both "spool chat" and "spool sessions").
type Flag struct {
	// Name is the long flag name (e.g. "server").
	Name string

	// Shorthand is the one-letter short flag (e.g. "s"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "server.url").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagServer     = "server"
	FlagToken      = "token"
	FlagRetryDelay = "retry-delay"
	FlagMaxRetries = "max-retries"
	FlagSQLite     = "sqlite"
	FlagCachePath  = "cache-path"
	FlagStubListen = "stub-listen"
)

// Flags is the canonical registry shared by the spool commands. Every entry
// maps a CLI flag to its dotted viper key so BindRegisteredFlags can
// complete the precedence chain (flag > env > config file > default).
var Flags = FlagSet{
	FlagServer:     {Name: "server", Shorthand: "s", ViperKey: "server.url", Description: "Session server URL"},
	FlagToken:      {Name: "token", ViperKey: "server.token", Description: "Bearer token for the session server"},
	FlagRetryDelay: {Name: "retry-delay", ViperKey: "stream.retry_delay_ms", Description: "Stream reconnect delay in milliseconds"},
	FlagMaxRetries: {Name: "max-retries", ViperKey: "stream.max_retries", Description: "Stream reconnect attempts per send"},
	FlagSQLite:     {Name: "sqlite", ViperKey: "storage.sqlite_path", Description: "SQLite file for local message history"},
	FlagCachePath:  {Name: "cache-path", ViperKey: "cache.path", Description: "File for the TTL cache snapshot"},
	FlagStubListen: {Name: "listen", Shorthand: "l", ViperKey: "stub.listen", Description: "Address to listen on"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
