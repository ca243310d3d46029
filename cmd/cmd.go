// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand initializes the database and runs migrations.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize database and run migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.SetupDatabase,
	}
}

// authCommand handles sign-in and sign-out.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the signed-in session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in through the browser using OAuth2",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "timeout",
						Usage: "Seconds to wait for the browser callback",
						Value: 120,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Sign out and forget the stored session",
				Action: r.AuthLogout,
			},
			{
				Name:  "whoami",
				Usage: "Show the signed-in user",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthWhoami,
			},
		},
	}
}

// favoritesCommand handles the favorite figure collection.
func favoritesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "favorites",
		Aliases: []string{"fav"},
		Usage:   "Manage favorite figures",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List favorites, most recent first",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.FavoritesList,
			},
			{
				Name:  "add",
				Usage: "Favorite a figure",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "figure"},
				},
				Action: r.FavoritesAdd,
			},
			{
				Name:  "remove",
				Usage: "Unfavorite a figure",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "figure"},
				},
				Action: r.FavoritesRemove,
			},
			{
				Name:  "open",
				Usage: "Record that a favorite was opened",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "figure"},
				},
				Action: r.FavoritesOpen,
			},
			{
				Name:  "mastery",
				Usage: "Set the mastery level for a favorite",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "figure"},
					&cli.StringArg{Name: "level"},
				},
				Action: r.FavoritesMastery,
			},
		},
	}
}

// choreoCommand handles the choreography collection.
func choreoCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "choreo",
		Aliases: []string{"ch"},
		Usage:   "Manage choreographies",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List choreographies, most recently updated first",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.ChoreoList,
			},
			{
				Name:  "create",
				Usage: "Create a private choreography",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "Choreography name",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:    "figure",
						Aliases: []string{"f"},
						Usage:   "Figure ID to append, repeatable",
					},
				},
				Action: r.ChoreoCreate,
			},
			{
				Name:  "delete",
				Usage: "Delete a choreography",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.ChoreoDelete,
			},
			{
				Name:  "share",
				Usage: "Toggle a choreography between private and public",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.ChoreoShare,
			},
		},
	}
}

// queueCommand inspects the durable sync queue.
func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Inspect the sync queue",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List pending operations in replay order",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.QueueList,
			},
			{
				Name:   "sweep",
				Usage:  "Remove operations that exhausted their retries",
				Action: r.QueueSweep,
			},
			{
				Name:   "clear",
				Usage:  "Drop every pending operation",
				Action: r.QueueClear,
			},
		},
	}
}

// drainCommand replays queued operations.
func drainCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "drain",
		Usage: "Replay queued operations against the backend",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "sweep",
				Usage: "Sweep abandoned operations after the pass",
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Requests per second",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Keep running and drain on every reconnect",
			},
		},
		Action: r.Drain,
	}
}

// cacheCommand inspects the TTL cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the local response cache",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Print a cached document",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "key"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.CacheGet,
			},
			{
				Name:  "clear",
				Usage: "Drop a cached document",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "key"},
				},
				Action: r.CacheClear,
			},
		},
	}
}

// statusCommand reports and classifies connection quality.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show network quality as the sync layer sees it",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.FloatFlag{
				Name:  "downlink",
				Usage: "Classify a hypothetical signal: downlink in Mbps",
			},
			&cli.IntFlag{
				Name:  "rtt",
				Usage: "Classify a hypothetical signal: round-trip time in ms",
			},
			&cli.StringFlag{
				Name:  "effective-type",
				Usage: "Classify a hypothetical signal: slow-2g, 2g, 3g or 4g",
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "Classify a hypothetical signal: transport (wifi, cellular, ...)",
			},
			&cli.BoolFlag{
				Name:  "save-data",
				Usage: "Classify a hypothetical signal: data saver enabled",
			},
		},
		Action: r.Status,
	}
}

// tuiCommand launches the interactive queue inspector.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Interactive queue inspector",
		Action: r.TUI,
	}
}
