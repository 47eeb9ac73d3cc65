package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/beymax11/chatstudio/src/auth"
	"github.com/beymax11/chatstudio/src/chat"
	"github.com/beymax11/chatstudio/src/config"
	"github.com/beymax11/chatstudio/src/orclient"
	"github.com/beymax11/chatstudio/src/project"
	"github.com/beymax11/chatstudio/src/remote"
	"github.com/beymax11/chatstudio/src/storage"
	"github.com/beymax11/chatstudio/src/translate"
)

// ErrAuthDisabled is returned by identity commands when no provider is configured.
var ErrAuthDisabled = errors.New("no identity provider configured (set auth.base_url)")

// ErrRemoteDisabled is returned by sync operations when no remote DSN is set.
var ErrRemoteDisabled = errors.New("remote sync is disabled (set remote.dsn)")

// App represents the main application with all services
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Store         *storage.DB
	Cache         storage.Cache
	Completions   *orclient.Client
	Translator    *translate.Client // nil when translation is disabled
	Identity      *auth.GoTrueClient
	Auth          *auth.Service // nil without an identity provider
	Confirmations *auth.Confirmations
	Remote        *remote.Adapter // nil when remote sync is disabled
	Projects      *project.Store
	Chats         *chat.Store
}

// Options overrides pieces of the environment, mostly for tests.
type Options struct {
	Logger *slog.Logger
	Fs     afero.Fs      // filesystem for the file cache and session; defaults to the OS
	Cache  storage.Cache // replaces the configured cache backend

	// Notifier delivers email confirmation tokens; tokens are logged when nil.
	Notifier auth.Notifier
}

// New creates a new App instance with all services initialized
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	a := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// Initialize storage
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	store, err := storage.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	a.Store = store

	a.Cache, err = a.buildCache(fsys, opts.Cache)
	if err != nil {
		return nil, err
	}

	// Completion client, optionally translating replies
	var translator orclient.Translator
	if cfg.Translation.Enabled {
		a.Translator = translate.NewClient(translate.Config{
			BaseURL:           cfg.Translation.BaseURL,
			Email:             cfg.Translation.Email,
			RequestsPerMinute: cfg.Translation.RequestsPerMinute,
			Logger:            logger,
		})
		translator = a.Translator
	}
	a.Completions = orclient.NewClient(orclient.Config{
		APIKey:       cfg.API.APIKey,
		BaseURL:      cfg.API.BaseURL,
		Logger:       logger,
		Timeout:      cfg.API.Timeout.Std(),
		MaxRetries:   cfg.API.MaxRetries,
		SystemPrompt: cfg.API.SystemPrompt,
		Translator:   translator,
	})

	// Identity and email confirmation
	a.Confirmations = auth.NewConfirmations(auth.ConfirmationsOptions{
		DB:       store.DB(),
		Notifier: opts.Notifier,
		Logger:   logger,
	})
	var sessions remote.SessionSource
	if cfg.Auth.Enabled() {
		a.Identity = auth.NewGoTrueClient(auth.GoTrueConfig{
			BaseURL:     cfg.Auth.BaseURL,
			AnonKey:     cfg.Auth.AnonKey,
			SessionPath: cfg.Auth.SessionPath,
			Fs:          fsys,
			Logger:      logger,
		})
		a.Auth = auth.NewService(a.Identity, a.Confirmations, logger)
		sessions = a.Auth
	}

	// Remote mirror
	var chatMirror chat.Mirror
	var projectMirror project.Mirror
	if cfg.Remote.Enabled {
		if sessions == nil {
			logger.Warn("remote sync enabled without an identity provider; nothing will be written")
		}
		// Sync is best-effort: a remote that cannot be opened leaves the app local-only.
		if a.Remote, err = remote.Open(ctx, cfg.Remote.DSN, sessions, logger); err != nil {
			logger.Warn("remote sync unavailable", "error", err)
		} else {
			chatMirror = a.Remote
			projectMirror = a.Remote
		}
	}

	a.Projects, err = project.New(ctx, project.Options{
		Cache:  a.Cache,
		Mirror: projectMirror,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}

	a.Chats, err = chat.New(ctx, chat.Options{
		Cache:                 a.Cache,
		Completer:             a.Completions,
		Projects:              a.Projects,
		Mirror:                chatMirror,
		Logger:                logger,
		DefaultModel:          cfg.Chat.DefaultModel,
		RejectConcurrentSends: cfg.Chat.RejectConcurrentSends,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	ok = true
	return a, nil
}

func (a *App) buildCache(fsys afero.Fs, override storage.Cache) (storage.Cache, error) {
	if override != nil {
		return override, nil
	}
	switch a.Config.Storage.Backend {
	case config.BackendFile:
		cache, err := storage.NewFileCache(fsys, a.Config.Storage.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open file cache: %w", err)
		}
		return cache, nil
	default:
		return storage.NewSettingsCache(a.Store), nil
	}
}

// RequireAuth returns the auth service or ErrAuthDisabled.
func (a *App) RequireAuth() (*auth.Service, error) {
	if a.Auth == nil {
		return nil, ErrAuthDisabled
	}
	return a.Auth, nil
}

// SyncResult counts what a pull brought in.
type SyncResult struct {
	Conversations int
	Projects      int
}

// Pull reads the signed-in user's rows from the remote store and merges them
// into the local stores. Local copies win on conflict.
func (a *App) Pull(ctx context.Context) (SyncResult, error) {
	if a.Remote == nil {
		return SyncResult{}, ErrRemoteDisabled
	}
	if err := a.Remote.Ping(ctx); err != nil {
		return SyncResult{}, err
	}

	convs, err := a.Remote.LoadConversations(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to load remote conversations: %w", err)
	}
	projects, err := a.Remote.LoadProjects(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to load remote projects: %w", err)
	}

	result := SyncResult{
		Conversations: a.Chats.Import(ctx, convs),
		Projects:      a.Projects.Import(ctx, projects),
	}
	a.Logger.Info("pulled remote data", "conversations", result.Conversations, "projects", result.Projects)
	return result, nil
}

// Close closes all resources held by the app
func (a *App) Close() error {
	var errs []error
	if a.Remote != nil {
		errs = append(errs, a.Remote.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
