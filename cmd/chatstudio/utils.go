package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/beymax11/chatstudio/src/app"
	"github.com/beymax11/chatstudio/src/chat"
	"github.com/beymax11/chatstudio/src/config"
)

// maxAttachmentSize limits files read for --attach.
const maxAttachmentSize = 10 << 20

// loadConfig loads the configuration from the specified path or default locations
func loadConfig(cli *CLI) (*config.Config, error) {
	precedence := config.GetConfigPaths()
	if cli.Config != "" {
		if _, err := os.Stat(cli.Config); err != nil {
			return nil, fmt.Errorf("%w: %w", errConfig, err)
		}
		// Override with specific path
		precedence.UserConfig = cli.Config
	}

	cfg, err := config.NewLoader(precedence).Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}
	overrideConfigFromCLI(cfg, cli)
	return cfg, nil
}

// overrideConfigFromCLI overrides configuration values with CLI flags
func overrideConfigFromCLI(cfg *config.Config, cli *CLI) {
	if cli.APIKey != "" {
		cfg.API.APIKey = cli.APIKey
	}
	if cli.BaseURL != "" {
		cfg.API.BaseURL = cli.BaseURL
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
}

// openApp loads configuration and builds the application with a stderr logger
func openApp(ctx context.Context, cli *CLI) (*app.App, *slog.Logger, error) {
	return openAppWith(ctx, cli, app.Options{})
}

// openAppWith is openApp with extra options; a nil logger gets the stderr one.
func openAppWith(ctx context.Context, cli *CLI, opts app.Options) (*app.App, *slog.Logger, error) {
	cfg, err := loadConfig(cli)
	if err != nil {
		return nil, nil, err
	}
	if opts.Logger == nil {
		opts.Logger = createCLILogger(cfg.Logging.Level)
	}
	logger := opts.Logger
	a, err := app.New(ctx, cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

// resolveConversation accepts a full id, a unique id prefix or a 1-based
// position in the conversation list. Empty means the current conversation.
func resolveConversation(store *chat.Store, ref string) (*chat.Conversation, error) {
	if ref == "" {
		if conv, ok := store.Current(); ok {
			return conv, nil
		}
		return nil, fmt.Errorf("no current conversation: %w", chat.ErrNotFound)
	}

	convs := store.Conversations()
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(convs) {
		return convs[n-1], nil
	}

	var match *chat.Conversation
	for _, c := range convs {
		if c.ID == ref {
			return c, nil
		}
		if strings.HasPrefix(c.ID, ref) {
			if match != nil {
				return nil, fmt.Errorf("conversation %q is ambiguous: %w", ref, chat.ErrInvalidInput)
			}
			match = c
		}
	}
	if match == nil {
		return nil, fmt.Errorf("conversation %q: %w", ref, chat.ErrNotFound)
	}
	return match, nil
}

// resolveMessage finds a message by id or unique id prefix. Empty picks the
// last message with role.
func resolveMessage(conv *chat.Conversation, ref string, role chat.Role) (*chat.Message, error) {
	if ref == "" {
		for i := len(conv.Messages) - 1; i >= 0; i-- {
			if conv.Messages[i].Role == role {
				return conv.Messages[i], nil
			}
		}
		return nil, fmt.Errorf("no %s message in conversation: %w", role, chat.ErrNotFound)
	}

	var match *chat.Message
	for _, m := range conv.Messages {
		if m.ID == ref {
			return m, nil
		}
		if strings.HasPrefix(m.ID, ref) {
			if match != nil {
				return nil, fmt.Errorf("message %q is ambiguous: %w", ref, chat.ErrInvalidInput)
			}
			match = m
		}
	}
	if match == nil {
		return nil, fmt.Errorf("message %q: %w", ref, chat.ErrNotFound)
	}
	return match, nil
}

// readAttachments loads files as base64 attachments.
func readAttachments(paths []string) ([]chat.FileAttachment, error) {
	var out []chat.FileAttachment
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read attachment: %w", err)
		}
		if len(data) > maxAttachmentSize {
			return nil, fmt.Errorf("attachment %s is larger than %d bytes: %w", path, maxAttachmentSize, chat.ErrInvalidInput)
		}

		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = http.DetectContentType(data)
		}
		out = append(out, chat.FileAttachment{
			ID:       uuid.NewString(),
			Name:     filepath.Base(path),
			MimeType: mimeType,
			Size:     int64(len(data)),
			Data:     base64.StdEncoding.EncodeToString(data),
		})
	}
	return out, nil
}

// shortID trims an id for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// confirm asks a yes/no question on stdin.
func confirm(question string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", question)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
