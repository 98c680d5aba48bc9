package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/calib-hub/condfetch/internal/app"
	"github.com/calib-hub/condfetch/internal/config"
	"github.com/calib-hub/condfetch/internal/logger"
	"github.com/calib-hub/condfetch/internal/staging"
	"github.com/calib-hub/condfetch/pkg/condb"
	"github.com/calib-hub/condfetch/pkg/payload"
	"github.com/urfave/cli"
)

const stagePath = ".condfetch/stage.db"

var version = "dev"

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "condfetch: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cliApp := cli.NewApp()
	cliApp.Name = "condfetch"
	cliApp.Usage = "manipulate conditions-database payload entries"
	cliApp.Version = version
	cliApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "profile name or file with database connection parameters",
		},
		cli.BoolFlag{
			Name:  "dump, d",
			Usage: "dump responses as JSON instead of pretty printing",
		},
	}
	cliApp.Commands = []cli.Command{
		configCommand(),
		showCommand(ctx),
		fetchCommand(ctx),
		addCommand(),
		stageCommand(),
		pushCommand(ctx),
	}
	return cliApp.Run(args)
}

// loadProfile resolves the profile named by the global --config flag and
// initializes logging from its verbosity.
func loadProfile(c *cli.Context) (*config.Profile, error) {
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return nil, err
	}
	if _, err := logger.Init(cfg.Verbosity); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configCommand() cli.Command {
	return cli.Command{
		Name:      "config",
		Usage:     "print the resolved profile, or one field of it",
		ArgsUsage: "[field]",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.GlobalString("config"))
			if err != nil {
				return err
			}

			if field := c.Args().First(); field != "" {
				return printProfileField(cfg, field)
			}
			out, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func printProfileField(cfg *config.Profile, field string) error {
	switch strings.ToLower(field) {
	case "host":
		fmt.Println(cfg.Host)
	case "port":
		fmt.Println(cfg.Port)
	case "apiroot":
		fmt.Println(cfg.APIRoot)
	case "apiver":
		fmt.Println(cfg.APIVersion)
	case "url":
		fmt.Println(cfg.URL())
	case "path":
		fmt.Println(strings.Join(cfg.Paths, ":"))
	case "verbosity":
		fmt.Println(cfg.Verbosity)
	case "file":
		fmt.Println(cfg.File)
	default:
		return fmt.Errorf("unknown profile field %q", field)
	}
	return nil
}

func showCommand(ctx context.Context) cli.Command {
	return cli.Command{
		Name:      "show",
		Usage:     "show catalog entries",
		ArgsUsage: "tags|domains",
		Flags: []cli.Flag{
			cli.Int64Flag{Name: "id", Usage: "unique entry id"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadProfile(c)
			if err != nil {
				return err
			}
			defer logger.Close()

			component := c.Args().First()
			if component != condb.ComponentTags && component != condb.ComponentDomains {
				return fmt.Errorf("component must be %q or %q", condb.ComponentTags, condb.ComponentDomains)
			}

			var id *int64
			if c.IsSet("id") {
				v := c.Int64("id")
				id = &v
			}

			client := condb.New(cfg, nil, logger.Default())
			entries, err := client.ListEntries(ctx, component, id)
			if err != nil {
				return err
			}

			if c.GlobalBool("dump") {
				out, err := json.MarshalIndent(entries, "", "    ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}
			for _, entry := range entries {
				fmt.Println(entry.Name)
			}
			return nil
		},
	}
}

func fetchCommand(ctx context.Context) cli.Command {
	return cli.Command{
		Name:      "fetch",
		Usage:     "fetch payload entries valid for a tag at a point in time",
		ArgsUsage: "<tag>",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "domain, D", Usage: "restrict to one payload domain"},
			cli.Uint64Flag{Name: "start, s", Usage: "point in validity time", Value: math.MaxInt64},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadProfile(c)
			if err != nil {
				return err
			}
			defer logger.Close()

			tag := strings.TrimSpace(c.Args().First())
			if tag == "" {
				return fmt.Errorf("tag must not be empty")
			}

			client := condb.New(cfg, nil, logger.Default())
			entries, _, err := client.FetchEntries(ctx, tag, c.String("domain"), c.Uint64("start"))
			if err != nil {
				return err
			}

			if c.GlobalBool("dump") {
				out, err := json.MarshalIndent(entries, "", "    ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}
			return printResolvedPayloads(cfg, entries)
		},
	}
}

// printResolvedPayloads prints the local path of every payload that exists
// under one of the configured prefixes, failing when none does.
func printResolvedPayloads(cfg *config.Profile, entries []condb.IOVEntry) error {
	resolver := payload.NewResolver(cfg.Paths)

	found := 0
	for _, entry := range entries {
		for _, iov := range entry.PayloadIOV {
			if iov.PayloadURL == nil {
				continue
			}
			if path, ok := resolver.Locate(*iov.PayloadURL); ok {
				fmt.Println(path)
				found++
			}
		}
	}
	if found == 0 {
		return fmt.Errorf("no payload file was found in any prefix")
	}
	return nil
}

func addCommand() cli.Command {
	return cli.Command{
		Name:  "add",
		Usage: "stage tags and payload intervals",
		Subcommands: []cli.Command{
			{
				Name:      "tag",
				Usage:     "stage a tag for payload intervals",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					cli.StringFlag{Name: "type, t", Value: "online", Usage: "tag type"},
					cli.StringFlag{Name: "status, s", Value: "unlocked", Usage: "tag status"},
					cli.StringSliceFlag{Name: "domains, D", Usage: "link domains to the tag"},
				},
				Action: func(c *cli.Context) error {
					name := strings.TrimSpace(c.Args().First())
					if name == "" {
						return fmt.Errorf("tag name must not be empty")
					}

					stage, err := staging.Open(stagePath)
					if err != nil {
						return err
					}
					defer stage.Close()

					return stage.StageTag(staging.TagEntry{
						Name:    name,
						Type:    c.String("type"),
						Status:  c.String("status"),
						Domains: c.StringSlice("domains"),
					})
				},
			},
			{
				Name:      "interval",
				Usage:     "stage a payload interval",
				ArgsUsage: "<tag> <domain> <payload-file>",
				Flags: []cli.Flag{
					cli.Uint64Flag{Name: "start, s", Usage: "start of validity"},
					cli.Uint64Flag{Name: "end, e", Usage: "end of validity (open when omitted)"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 3 {
						return fmt.Errorf("usage: add interval <tag> <domain> <payload-file>")
					}
					file := c.Args().Get(2)
					if _, err := os.Stat(file); err != nil {
						return fmt.Errorf("payload file not found: %s", file)
					}

					record := staging.PayloadRecord{Path: file, Start: c.Uint64("start")}
					if c.IsSet("end") {
						end := c.Uint64("end")
						record.End = &end
					}

					stage, err := staging.Open(stagePath)
					if err != nil {
						return err
					}
					defer stage.Close()

					return stage.StageInterval(c.Args().Get(0), c.Args().Get(1), record)
				},
			},
		},
	}
}

func stageCommand() cli.Command {
	return cli.Command{
		Name:  "stage",
		Usage: "export or import the staged entries",
		Subcommands: []cli.Command{
			{
				Name:      "dump",
				Usage:     "write staged entries as YAML to stdout or a file",
				ArgsUsage: "[file]",
				Action: func(c *cli.Context) error {
					stage, err := staging.Open(stagePath)
					if err != nil {
						return err
					}
					defer stage.Close()

					out := os.Stdout
					if file := c.Args().First(); file != "" {
						f, err := os.Create(file)
						if err != nil {
							return fmt.Errorf("create stage dump: %w", err)
						}
						defer f.Close()
						out = f
					}
					return staging.Export(stage, out)
				},
			},
			{
				Name:      "load",
				Usage:     "stage entries from a YAML file",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					file := c.Args().First()
					if file == "" {
						return fmt.Errorf("usage: stage load <file>")
					}
					f, err := os.Open(file)
					if err != nil {
						return fmt.Errorf("open stage dump: %w", err)
					}
					defer f.Close()

					stage, err := staging.Open(stagePath)
					if err != nil {
						return err
					}
					defer stage.Close()

					return staging.Import(stage, f)
				},
			},
		},
	}
}

func pushCommand(ctx context.Context) cli.Command {
	return cli.Command{
		Name:  "push",
		Usage: "push staged tags and payload intervals",
		Flags: []cli.Flag{
			cli.BoolFlag{Name: "dry-run", Usage: "validate the push without mutating anything"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadProfile(c)
			if err != nil {
				return err
			}
			defer logger.Close()

			stage, err := staging.Open(stagePath)
			if err != nil {
				return err
			}
			defer stage.Close()

			writer := condb.NewPusher(cfg, nil, logger.Default())
			resolver := payload.NewResolver(cfg.Paths)

			pusher, err := app.NewPusher(stage, writer, resolver, logger.Default())
			if err != nil {
				return err
			}
			return pusher.Push(ctx, c.Bool("dry-run"))
		},
	}
}
