// submodule cmd contains command definitions
package main

import (
	"context"

	"github.com/desertthunder/vkm/internal/services"
	"github.com/desertthunder/vkm/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

// app builds the root command. Global flags are inherited by every subcommand.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:     "vkm",
		Usage:    "List, search and download music from VK",
		Version:  "0.3.0",
		Flags:    globalFlags(),
		Commands: r.register(),
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   defaultConfigPath,
		},
		&cli.StringFlag{
			Name:    "login",
			Aliases: []string{"l"},
			Usage:   "VK login, phone or email (env: " + shared.EnvLogin + ")",
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"p"},
			Usage:   "VK password (env: " + shared.EnvPassword + ")",
		},
		&cli.StringFlag{
			Name:  "credentials",
			Usage: "File with the login on the first line and the password on the second",
		},
		&cli.StringFlag{
			Name:  "token",
			Usage: "Use this access token instead of logging in",
		},
		&cli.StringFlag{
			Name:  "api-version",
			Usage: "VK API version",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level (debug, info, warn, error)",
			Value: "info",
		},
	}
}

// configured wraps an action so the config file and global flags are applied first.
func (r *Runner) configured(action cli.ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if _, err := r.configure(ctx, cmd); err != nil {
			return err
		}
		return action(ctx, cmd)
	}
}

// setupCommand writes the config file and prepares the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file and initialize the database",
		Action: r.Setup,
	}
}

// authCommand handles token operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the VK access token",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in with the VK login form and cache the access token",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Log in again even when a cached token is valid",
					},
				},
				Action: r.configured(r.AuthLogin),
			},
			{
				Name:  "status",
				Usage: "Show the cached token",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "check",
						Usage: "Validate the token against VK",
					},
				},
				Action: r.configured(r.AuthStatus),
			},
			{
				Name:  "logout",
				Usage: "Delete cached tokens",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Delete tokens of every login",
					},
				},
				Action: r.configured(r.AuthLogout),
			},
		},
	}
}

// audioSelectionFlags select the audios of an owner, album or explicit ids.
func audioSelectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "owner-id",
			Usage: "Owner of the audios (defaults to the logged-in user)",
		},
		&cli.IntFlag{
			Name:  "album-id",
			Usage: "Only audios of this album",
		},
		&cli.IntSliceFlag{
			Name:  "ids",
			Usage: "Only these audio ids",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of audios, 0 for no limit",
		},
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Fetch every page instead of only the first",
		},
	}
}

// musicCommand handles audio operations
func musicCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "music",
		Aliases: []string{"m"},
		Usage:   "VK audio operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List audios",
				Flags: append(audioSelectionFlags(),
					&cli.StringFlag{
						Name:  "print",
						Usage: "Print only one part of each audio (id, name, url)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "Output CSV",
					},
				),
				Action: r.configured(r.MusicList),
			},
			{
				Name:  "albums",
				Usage: "List audio albums",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "owner-id",
						Usage: "Owner of the albums (defaults to the logged-in user)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of albums, 0 for no limit",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Fetch every page instead of only the first",
					},
					&cli.StringFlag{
						Name:  "print",
						Usage: "Print only one part of each album (id, title)",
					},
				},
				Action: r.configured(r.MusicAlbums),
			},
			{
				Name:  "search",
				Usage: "Search audios",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "query"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "own",
						Usage: "Search only the user's own audios",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: services.DefaultSearchLimit,
					},
					&cli.StringFlag{
						Name:  "print",
						Usage: "Print only one part of each audio (id, name, url)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.configured(r.MusicSearch),
			},
			{
				Name:  "download",
				Usage: "Download audios",
				Flags: append(audioSelectionFlags(),
					&cli.BoolFlag{
						Name:    "interactive",
						Aliases: []string{"i"},
						Usage:   "Ask before downloading each audio",
					},
					&cli.BoolFlag{
						Name:  "skip-error",
						Usage: "Report failed downloads and continue",
					},
					&cli.BoolFlag{
						Name:  "skip-exists",
						Usage: "Skip audios whose file already exists",
					},
					&cli.StringFlag{
						Name:    "destination",
						Aliases: []string{"d"},
						Usage:   "Target directory (defaults to download.destination)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent downloads (defaults to download.workers)",
					},
					&cli.BoolFlag{
						Name:  "slug",
						Usage: "Use ASCII slugs as file names",
					},
				),
				Action: r.configured(r.MusicDownload),
			},
			{
				Name:  "history",
				Usage: "Show downloaded audios",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of entries to show",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.configured(r.MusicHistory),
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive downloads.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI to browse and download audios",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where the TUI writes its logs",
				Value: "./tmp/vkm-tui.log",
			},
		},
		Action: r.configured(r.TUI),
	}
}
