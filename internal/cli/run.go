/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/suparena/docstore"
	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"

	// Backends selectable with --backend.
	_ "github.com/suparena/docstore/datastore/ddb"
	_ "github.com/suparena/docstore/datastore/mock"
	_ "github.com/suparena/docstore/datastore/sqlite"
)

type globalFlags struct {
	configPath string
	envFile    string
	backend    string
	database   string
	collection string
	verbose    bool
	version    bool
}

func newGlobalFlags(g *globalFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("docstore", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.StringVarP(&g.configPath, "config", "c", "", "YAML config file (default $"+EnvConfig+")")
	fs.StringVar(&g.envFile, "env-file", ".env", "dotenv file with DOCSTORE_* overrides")
	fs.StringVar(&g.backend, "backend", "", "backend name, overrides the config")
	fs.StringVar(&g.database, "database", "", "database name, overrides the config")
	fs.StringVar(&g.collection, "collection", "", "collection name, overrides the config")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "log provisioning decisions and document outcomes")
	fs.BoolVar(&g.version, "version", false, "print version information and exit")
	return fs
}

// Run is the main entry point. args includes the program name. Returns the
// exit code.
func Run(in io.Reader, out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	o := NewIO(in, out, errOut)

	var g globalFlags
	fs := newGlobalFlags(&g)
	fs.SetOutput(io.Discard)
	if len(args) > 0 {
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(o, fs)
			return 0
		}
		o.ErrPrintln("error:", err)
		return 1
	}

	if g.version {
		o.Println(docstore.GetVersionInfo().String())
		return 0
	}

	rest := fs.Args()
	if len(rest) == 0 || rest[0] == "help" {
		printUsage(o, fs)
		return 0
	}

	cfg, err := LoadConfig(g.configPath, g.envFile, env)
	if err == nil {
		err = applyOverrides(&cfg, fs, g)
	}
	if err != nil {
		o.PrintError(err)
		return 1
	}

	// Results go to stdout; logs stay quiet unless asked for.
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	s := &session{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level})),
	}
	defer s.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for _, cmd := range s.commands() {
		if cmd.Name() == rest[0] {
			return cmd.Run(ctx, o, rest[1:])
		}
	}
	o.ErrPrintln("error: unknown command:", rest[0])
	printUsage(o, fs)
	return 1
}

func applyOverrides(cfg *FileConfig, fs *flag.FlagSet, g globalFlags) error {
	if fs.Changed("backend") {
		cfg.Backend = g.backend
	}
	if fs.Changed("database") {
		cfg.Database = g.database
	}
	if fs.Changed("collection") {
		cfg.Collection = g.collection
	}
	return cfg.Validate()
}

func printUsage(o *IO, fs *flag.FlagSet) {
	o.Println("docstore provisions databases and collections and manages documents in them.")
	o.Println()
	o.Println("Usage: docstore [global flags] <command> [flags] [args]")
	o.Println()
	o.Println("Commands:")
	for _, cmd := range (&session{}).commands() {
		o.Println(cmd.HelpLine())
	}
	o.Println()
	o.Println("Global flags:")
	var buf strings.Builder
	fs.SetOutput(&buf)
	fs.PrintDefaults()
	fs.SetOutput(io.Discard)
	o.Printf("%s", buf.String())
	o.Println()
	o.Println("Backends:", strings.Join(datastore.Backends(), ", "))
}

// session carries the resolved configuration and the lazily opened
// transport shared by the commands of one invocation.
type session struct {
	cfg       FileConfig
	logger    *slog.Logger
	transport datastore.Transport
}

func (s *session) open(ctx context.Context) (datastore.Transport, error) {
	if s.transport != nil {
		return s.transport, nil
	}
	t, err := datastore.Open(ctx, s.cfg.Backend, s.cfg.Settings)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("backend opened", "backend", s.cfg.Backend)
	s.transport = t
	return t, nil
}

func (s *session) close() {
	if s.transport == nil {
		return
	}
	if err := datastore.Close(s.transport); err != nil {
		s.logger.Warn("close backend", "backend", s.cfg.Backend, "error", err)
	}
	s.transport = nil
}

func (s *session) commands() []*Command {
	return []*Command{
		s.provisionCommand(),
		s.insertCommand(),
		s.readCommand(),
		s.queryCommand(),
		s.updateCommand(),
		s.deleteCommand(),
		s.teardownCommand(),
		s.demoCommand(),
	}
}
