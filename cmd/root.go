package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cexll/cpp-auto-formatter/internal/config"
	"github.com/cexll/cpp-auto-formatter/internal/formatter"
	"github.com/cexll/cpp-auto-formatter/internal/git"
	"github.com/cexll/cpp-auto-formatter/internal/github"
	"github.com/cexll/cpp-auto-formatter/internal/glob"
	"github.com/cexll/cpp-auto-formatter/internal/resolver"
	"github.com/cexll/cpp-auto-formatter/internal/workflow"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "cpp-auto-formatter",
		Short:         "Format C/C++ sources with clang-format in response to GitHub events",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	config.RegisterFlags(root.PersistentFlags(), formatter.DefaultParallelism())
	root.MarkFlagsMutuallyExclusive(config.FlagClangFormatOverride, config.FlagClangFormatVersion)

	root.AddCommand(newCommandCmd(), newCheckCmd(), newListCmd())
	return root
}

func newCommandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "command",
		Short: "Run the bot command in the triggering issue_comment event and push the formatting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			orch, raw, err := prepareEventRun(cfg, logger)
			if err != nil {
				return err
			}
			_, err = orch.Command(cmd.Context(), raw, cfg.EventName)
			return err
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Fail when the branch updated by the triggering push event is not formatted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			orch, raw, err := prepareEventRun(cfg, logger)
			if err != nil {
				return err
			}
			result, err := orch.Check(cmd.Context(), raw, cfg.EventName)
			switch {
			case err != nil:
				return err
			case result.ExitCode != 0:
				return fmt.Errorf("%d file(s) are not formatted: %s", len(result.Changed), strings.Join(result.Changed, ", "))
			default:
				return nil
			}
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the tracked files the include and exclude globs select",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			rules, err := glob.Compile(cfg.Includes, cfg.Excludes)
			if err != nil {
				return err
			}
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
			logger.Debug("listing files", "dir", wd)
			repo, err := git.Open(wd)
			if err != nil {
				return err
			}
			return workflow.List(cmd.Context(), repo, rules, cmd.OutOrStdout())
		},
	}
}

// setup loads the configuration, builds the logger and moves into the
// workspace.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if cfg.Debug {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), opts))

	if cfg.Workspace != "" {
		if err := os.Chdir(cfg.Workspace); err != nil {
			return nil, nil, fmt.Errorf("failed to enter workspace: %w", err)
		}
		logger.Debug("working directory", "dir", cfg.Workspace)
	}
	return cfg, logger, nil
}

// prepareEventRun validates what the event-driven subcommands need, reads the
// event payload and wires the orchestrator.
func prepareEventRun(cfg *config.Config, logger *slog.Logger) (*workflow.Orchestrator, []byte, error) {
	if err := cfg.RequireEvent(); err != nil {
		return nil, nil, err
	}
	if err := cfg.RequireCredentials(); err != nil {
		return nil, nil, err
	}

	rules, err := glob.Compile(cfg.Includes, cfg.Excludes)
	if err != nil {
		return nil, nil, err
	}
	clangFormat, err := resolveClangFormat(formatter.PathOptions{
		Override:     cfg.ClangFormatOverride,
		Version:      cfg.ClangFormatVersion,
		GitHubAction: cfg.GitHubAction,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("using clang-format", "path", clangFormat)

	wd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	raw, err := os.ReadFile(cfg.EventPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read event payload: %w", err)
	}

	orch := workflow.New(workflow.Options{
		Rules:         rules,
		Resolver:      resolver.New(wd),
		Formatter:     formatter.NewClangFormat(clangFormat),
		Connect:       connector(cfg, logger),
		BotName:       cfg.BotName,
		CommitMessage: cfg.CommitMessage,
		Identity:      git.BotIdentity(cfg.BotName, cfg.BotEmail),
		Parallelism:   cfg.Parallelism,
		Logger:        logger,
	})
	return orch, raw, nil
}

// connector authenticates per repository: the token from the configured
// source drives the API client, the clone and the push.
func connector(cfg *config.Config, logger *slog.Logger) workflow.Connector {
	clientOpts := github.ClientOptions{
		APIURL:     cfg.GitHubAPIURL,
		Timeout:    cfg.HTTPTimeout,
		MaxRetries: cfg.HTTPRetries,
		Logger:     logger,
	}
	if clientOpts.MaxRetries == 0 {
		clientOpts.MaxRetries = -1
	}

	var tokens github.TokenSource = github.StaticToken(cfg.GitHubToken)
	if cfg.UsesApp() {
		tokens = &github.AppAuth{AppID: cfg.GitHubAppID, PrivateKey: cfg.GitHubPrivateKey, Options: clientOpts}
	}

	return func(ctx context.Context, repo string) (*workflow.Remote, error) {
		token, err := tokens.Token(ctx, repo)
		if err != nil {
			return nil, err
		}
		client, err := github.NewClient(token, clientOpts)
		if err != nil {
			return nil, err
		}
		cloner := git.NewCloner(git.CloneOptions{BaseURL: cfg.GitHubURL, Token: token})

		return &workflow.Remote{
			PullRequests: github.NewPullRequests(client),
			Comments:     github.NewComments(client),
			Checkout: func(ctx context.Context, target resolver.FormatTarget) (workflow.WorkTree, error) {
				tree, err := cloner.Checkout(ctx, target)
				if err != nil {
					return nil, err
				}
				return tree, nil
			},
		}, nil
	}
}
