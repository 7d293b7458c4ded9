package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/bodgit/rescomp"
	"github.com/bodgit/rescomp/pack"
	"github.com/bodgit/rescomp/symtab"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

const envPrefix = "RESCOMP"

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func env(name string) []string {
	return []string{envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))}
}

func newLogger(c *cli.Context) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	if c.Bool("verbose") {
		logger.SetLevel(logrus.InfoLevel)
	}
	if c.Bool("debug") {
		logger.SetLevel(logrus.DebugLevel)
	}

	if file := c.String("log-file"); file != "" {
		logger.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10,
			MaxBackups: 3,
		}))
	}

	return logger
}

func newConfig(c *cli.Context) (rescomp.Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := c.String("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return rescomp.Config{}, err
		}
	}

	return rescomp.NewConfig(v), nil
}

// setup returns a Compiler and a function to release it
func setup(c *cli.Context) (*rescomp.Compiler, func(), error) {
	logger := newLogger(c)

	config, err := newConfig(c)
	if err != nil {
		return nil, nil, err
	}

	packer := pack.Default()
	closer := func() {}
	if file := c.String("cache"); file != "" {
		cache, err := rescomp.NewSQLCache(file)
		if err != nil {
			return nil, nil, err
		}
		packer = packer.WithCache(cache)
		closer = func() {
			if err := cache.Close(); err != nil {
				logger.Warn(err)
			}
		}
	}

	return rescomp.New(config, packer, logger), closer, nil
}

func dump(w io.Writer, file string) error {
	b, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	t := symtab.New()
	if err := t.UnmarshalBinary(b); err != nil {
		return err
	}

	fmt.Fprintf(w, "checksum %08X", t.Checksum)
	bin := strings.TrimSuffix(file, symtab.Ext) + ".bin"
	if data, err := os.ReadFile(bin); err == nil {
		if t.Verify(data) {
			fmt.Fprintf(w, " (matches %s)", bin)
		} else {
			fmt.Fprintf(w, " (does not match %s)", bin)
		}
	}
	fmt.Fprintln(w)

	for _, e := range t.Entries() {
		fmt.Fprintf(w, "%-40s %08X %8d %s\n", e.ID, e.Offset, e.Size, pack.Compression(e.Scheme))
	}

	return nil
}

func main() {
	app := cli.NewApp()

	app.Name = "rescomp"
	app.Usage = "Sega Mega Drive resource compiler"
	app.Version = "1.0.0"

	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			EnvVars: env("verbose"),
			Usage:   "increase verbosity",
		},
		&cli.BoolFlag{
			Name:    "debug",
			EnvVars: env("debug"),
			Usage:   "log everything",
		},
		&cli.StringFlag{
			Name:    "config",
			EnvVars: env("config"),
			Usage:   "path to configuration file",
		},
		&cli.StringFlag{
			Name:    "cache",
			EnvVars: env("cache"),
			Usage:   "path to compression cache database",
		},
		&cli.StringFlag{
			Name:    "log-file",
			EnvVars: env("log-file"),
			Usage:   "also log to a rotated file",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:        "compile",
			Usage:       "Compile a resource file",
			Description: "Writes the assembler source, C header, binary section and symbol table of FILE. OUT defaults to FILE with a .s extension.",
			ArgsUsage:   "FILE [OUT]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "dep",
					Usage: "write a make dependency file for `TARGET`",
				},
				&cli.BoolFlag{
					Name:  "no-header",
					Usage: "do not write the C header",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				compiler, closer, err := setup(c)
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer closer()

				in := c.Args().First()
				out := rescomp.OutputFile(in)
				if c.NArg() > 1 {
					out = c.Args().Get(1)
				}

				opts := rescomp.Options{
					DepTarget: c.String("dep"),
					NoHeader:  c.Bool("no-header"),
				}
				if err := compiler.Compile(c.Context, in, out, opts); err != nil {
					return cli.Exit(err, 1)
				}

				return nil
			},
		},
		{
			Name:        "build",
			Usage:       "Compile every resource file in a directory tree",
			Description: "",
			ArgsUsage:   "DIRECTORY",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				compiler, closer, err := setup(c)
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer closer()

				if err := compiler.Build(c.Context, c.Args().First()); err != nil {
					return cli.Exit(err, 1)
				}

				return nil
			},
		},
		{
			Name:        "dump",
			Usage:       "Print a symbol table",
			Description: "",
			ArgsUsage:   "FILE",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				if err := dump(c.App.Writer, c.Args().First()); err != nil {
					return cli.Exit(err, 1)
				}

				return nil
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		logrus.Fatal(err)
	}
}
