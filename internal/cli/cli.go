// Package cli is the linkdeck command line: the HTTP service plus a few
// one-shot commands that run the retrieval pipeline and print the result.
package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/MrSnakeDoc/linkdeck/internal/app"
	"github.com/MrSnakeDoc/linkdeck/internal/catalog"
	"github.com/MrSnakeDoc/linkdeck/internal/config"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/querystate"
	"github.com/MrSnakeDoc/linkdeck/internal/version"
)

const configFlag = "config"

// New returns the CLI application. Without a command it serves HTTP.
func New() *cli.App {
	return &cli.App{
		Name:    "linkdeck",
		Usage:   "browse a linkding bookmark collection",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{config.FileEnv},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:      "list",
				Usage:     "print bookmarks matching a query string",
				ArgsUsage: "[query-string, e.g. \"q=go&tags=dev&sort=title-asc\"]",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "page", Aliases: []string{"p"}, Usage: "page number (overrides page= in the query)"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "page size (default: configured page_size)"},
					&cli.BoolFlag{Name: "grouped", Aliases: []string{"g"}, Usage: "group the whole result by tag"},
				},
				Action: list,
			},
			{
				Name:  "tags",
				Usage: "print tags ranked by usage",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "q", Usage: "case-insensitive tag search"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 100, Usage: "number of tags"},
					&cli.IntFlag{Name: "offset", Usage: "tags to skip"},
				},
				Action: tags,
			},
			{
				Name:  "version",
				Usage: "print build information",
				Action: func(c *cli.Context) error {
					_, err := fmt.Fprintln(c.App.Writer, version.Get().String())
					return err
				},
			},
		},
	}
}

// Run executes the CLI with the given arguments (os.Args style).
func Run(ctx context.Context, args []string) error {
	return New().RunContext(ctx, args)
}

func load(c *cli.Context) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(c.String(configFlag))
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.LogLevel, cfg.PrettyLog), nil
}

func serve(c *cli.Context) error {
	cfg, loggerClient, err := load(c)
	if err != nil {
		return err
	}
	defer func() { _ = loggerClient.Sync() }()

	a, err := app.New(c.Context, cfg, loggerClient)
	if err != nil {
		return err
	}
	return a.Run(c.Context)
}

// oneShot builds a catalog for a single command. The shared store is not
// used: one-shot commands always read the upstream directly.
func oneShot(c *cli.Context) (*config.Config, *catalog.Service, error) {
	cfg, loggerClient, err := load(c)
	if err != nil {
		return nil, nil, err
	}
	cat, err := app.NewCatalog(cfg, loggerClient, nil)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cat, nil
}

func list(c *cli.Context) error {
	criteria, err := querystate.DecodeString(c.Args().First())
	if err != nil {
		return fmt.Errorf("invalid query string: %w", err)
	}
	if c.IsSet("page") {
		criteria = criteria.WithPage(c.Int("page"))
	}

	cfg, cat, err := oneShot(c)
	if err != nil {
		return err
	}
	defer cat.Close()

	if c.Bool("grouped") {
		groups, count, err := cat.Groups(c.Context, criteria)
		if err != nil {
			return err
		}
		return RenderGroups(c.App.Writer, groups, count)
	}

	size := cfg.PageSize
	if n := c.Int("limit"); n > 0 {
		size = min(n, cfg.MaxPageSize)
	}
	page, err := cat.List(c.Context, criteria, size)
	if err != nil {
		return err
	}
	return RenderPage(c.App.Writer, page)
}

func tags(c *cli.Context) error {
	_, cat, err := oneShot(c)
	if err != nil {
		return err
	}
	defer cat.Close()

	win, err := cat.Tags(c.Context, catalog.TagQuery{
		Search: c.String("q"),
		Limit:  c.Int("limit"),
		Offset: c.Int("offset"),
	})
	if err != nil {
		return err
	}
	return RenderTags(c.App.Writer, win)
}
