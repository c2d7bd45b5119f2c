// Package chatcmder provides the chat command for interactive streaming
// conversations with a remote coding session.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/api"
	"github.com/papercomputeco/spool/pkg/cache"
	"github.com/papercomputeco/spool/pkg/chat"
	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/dotdir"
	"github.com/papercomputeco/spool/pkg/logger"
	"github.com/papercomputeco/spool/pkg/store"
	"github.com/papercomputeco/spool/pkg/store/inmemory"
	"github.com/papercomputeco/spool/pkg/store/sqlite"
	"github.com/papercomputeco/spool/pkg/utils"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
	server     string
	token      string
	sessionID  string
	title      string
	sqlitePath string
	cachePath  string
	retryDelay uint
	maxRetries uint
	debug      bool

	logger *zap.Logger
}

const chatLongDesc string = `Start an interactive streaming chat with a remote coding session.

Messages are sent to the session server and the assistant's reply streams
back token by token over the session's event feed. Committed messages are
mirrored into local storage so history survives restarts and stays readable
offline.

If no --session is given, the most recently opened session is resumed.
When there is nothing to resume, a new session is created.

Examples:
  spool chat
  spool chat --session 0199adf3
  spool chat --title "fix the race in the watcher"
  spool chat --server https://sessions.example.com`

const chatShortDesc string = "Interactive streaming chat with a remote session"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{
				config.FlagServer,
				config.FlagToken,
				config.FlagSQLite,
				config.FlagCachePath,
				config.FlagRetryDelay,
				config.FlagMaxRetries,
			})

			cmder.server = v.GetString("server.url")
			cmder.token = v.GetString("server.token")
			cmder.sqlitePath = v.GetString("storage.sqlite_path")
			cmder.cachePath = v.GetString("cache.path")
			cmder.retryDelay = v.GetUint("stream.retry_delay_ms")
			cmder.maxRetries = v.GetUint("stream.max_retries")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagServer, &cmder.server)
	config.AddStringFlag(cmd, config.Flags, config.FlagToken, &cmder.token)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagCachePath, &cmder.cachePath)
	config.AddUintFlag(cmd, config.Flags, config.FlagRetryDelay, &cmder.retryDelay)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxRetries, &cmder.maxRetries)
	cmd.Flags().StringVar(&cmder.sessionID, "session", "", "Session ID to resume")
	cmd.Flags().StringVarP(&cmder.title, "title", "t", "", "Create a new session with this title")

	return cmd
}

func (c *chatCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	ctx := context.Background()

	headers := map[string]string{}
	if c.token != "" {
		headers["Authorization"] = "Bearer " + c.token
	}

	client, err := api.NewClient(api.Config{
		URL:     c.server,
		Headers: headers,
		Logger:  c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating API client: %w", err)
	}

	dotdirManager := dotdir.NewManager()
	session, err := c.resolveSession(ctx, client, dotdirManager)
	if err != nil {
		return err
	}

	messageStore, closeStore, err := c.openStore(dotdirManager)
	if err != nil {
		return err
	}
	defer closeStore()

	fmt.Println()
	fmt.Printf("  %s %s %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(sessionLabel(session)),
		cliui.DimStyle.Render(utils.Truncate(session.ID, 16)),
	)

	if err := c.printHistory(ctx, client, session.ID); err != nil {
		// History is a convenience; a cold server-side list should not
		// block chatting.
		c.logger.Warn("could not load session history", zap.Error(err))
	}

	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	var printed int
	assembler := chat.NewAssembler(chat.Config{
		Store: messageStore,
		Subscriber: &chat.StreamSubscriber{
			BaseURL:    c.server,
			Headers:    headers,
			RetryDelay: time.Duration(c.retryDelay) * time.Millisecond,
			MaxRetries: int(c.maxRetries),
			Logger:     c.logger,
		},
		Prompter: client,
		Logger:   c.logger,
	})
	assembler.OnUpdate = func(msg *chat.Message) {
		text := msg.Text()
		if len(text) > printed {
			fmt.Print(text[printed:])
			printed = len(text)
		}
	}

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		printed = 0
		fmt.Print(assistantPrompt)

		if err := assembler.SendMessage(ctx, session.ID, input); err != nil {
			fmt.Fprintf(os.Stderr, "\r  %s %v\n", cliui.FailMark, err)
			continue
		}

		if state := c.waitForReply(assembler); state == chat.StateFailed {
			fmt.Fprintf(os.Stderr, "\n  %s %v\n", cliui.FailMark, assembler.LastError())
			assembler.Reset()
		}

		fmt.Println()
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Println()
	return nil
}

// resolveSession picks the session to chat in: the --session flag, then a
// new session when --title is given, then the last-opened session, then a
// freshly created one. The choice is persisted for next time.
func (c *chatCommander) resolveSession(ctx context.Context, client *api.Client, ddm *dotdir.Manager) (*api.Session, error) {
	if c.sessionID != "" {
		session := &api.Session{ID: c.sessionID}
		if err := ddm.SaveSessionState(&dotdir.SessionState{
			SessionID: session.ID,
			OpenedAt:  time.Now().UTC(),
		}, ""); err != nil {
			c.logger.Warn("could not persist session state", zap.Error(err))
		}
		return session, nil
	}

	if c.title == "" {
		state, err := ddm.LoadSessionState("")
		if err != nil {
			return nil, fmt.Errorf("loading session state: %w", err)
		}
		if state != nil {
			return &api.Session{ID: state.SessionID, Title: state.Title}, nil
		}
	}

	title := c.title
	if title == "" {
		title = "spool session"
	}

	session, err := client.CreateSession(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	if err := ddm.SaveSessionState(&dotdir.SessionState{
		SessionID: session.ID,
		Title:     session.Title,
		OpenedAt:  time.Now().UTC(),
	}, ""); err != nil {
		c.logger.Warn("could not persist session state", zap.Error(err))
	}

	return session, nil
}

// openStore builds the local message store: SQLite when configured,
// in-memory otherwise, both wrapped in the TTL read cache. The cache
// snapshot lives at cache.path when set, falling back to cache.json
// under .spool/.
func (c *chatCommander) openStore(ddm *dotdir.Manager) (chat.MessageStore, func(), error) {
	var driver store.Store
	var closeStore func()

	if c.sqlitePath != "" {
		sqliteDriver, err := sqlite.NewDriver(c.sqlitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening message store: %w", err)
		}
		driver = sqliteDriver
		closeStore = func() { _ = sqliteDriver.Close() }
	} else {
		driver = inmemory.NewDriver()
		closeStore = func() {}
	}

	cachePath := c.cachePath
	if cachePath == "" {
		if target, err := ddm.Target(""); err == nil && target != "" {
			cachePath = filepath.Join(target, "cache.json")
		}
	}

	cacheOpts := []cache.Option{cache.WithLogger(c.logger)}
	if cachePath != "" {
		cacheOpts = append(cacheOpts, cache.WithPath(cachePath))
	}

	return store.NewCached(driver, cache.New(cacheOpts...)), closeStore, nil
}

// printHistory renders the session's committed messages from the server.
func (c *chatCommander) printHistory(ctx context.Context, client *api.Client, sessionID string) error {
	messages, err := client.ListMessages(ctx, sessionID)
	if err != nil {
		return err
	}

	if len(messages) == 0 {
		return nil
	}

	fmt.Printf("  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("(%d earlier messages)", len(messages))))
	for _, msg := range messages {
		prompt := userPrompt
		text := msg.Text()
		if msg.Role != "user" {
			prompt = assistantPrompt
			if rendered, err := cliui.RenderMarkdown(text); err == nil {
				text = strings.TrimRight(rendered, "\n")
			}
		}
		fmt.Printf("%s%s\n", prompt, text)
	}
	fmt.Println()

	return nil
}

// waitForReply blocks until the in-flight send reaches a terminal state.
func (c *chatCommander) waitForReply(assembler *chat.Assembler) chat.State {
	for {
		switch state := assembler.State(); state {
		case chat.StateSending, chat.StateStreaming:
			time.Sleep(50 * time.Millisecond)
		default:
			return state
		}
	}
}

func sessionLabel(session *api.Session) string {
	if session.Title != "" {
		return session.Title
	}
	return "session"
}
