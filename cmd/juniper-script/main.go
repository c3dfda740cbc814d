// Command juniper-script turns paragraph Scripture text into dramatized
// scripts and aligns them with reference texts.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/JuniperScript/internal/config"
	"github.com/FocuswithJustin/JuniperScript/internal/logging"
)

const version = "0.1.0"

// CLI defines the command-line interface for juniper-script.
var CLI struct {
	// Global flags
	Config    string `name:"config" short:"c" help:"Project configuration file" type:"path" default:"juniper-script.yaml"`
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" help:"Log format (json, text)"`

	// Command groups (noun-first organization)
	Script      ScriptGroup      `cmd:"" help:"Import, parse and inspect book scripts"`
	Quotes      QuotesGroup      `cmd:"" help:"Quotation-mark helpers"`
	ControlData ControlDataGroup `cmd:"" name:"controldata" help:"Character/verse control data"`
	Matchup     MatchupCmd       `cmd:"" help:"Align blocks around an anchor with the reference text"`
	Version     VersionCmd       `cmd:"" help:"Print version information"`
}

// ScriptGroup contains book script operations.
type ScriptGroup struct {
	Import  ImportCmd  `cmd:"" help:"Import a USX book into a script file"`
	Parse   ParseCmd   `cmd:"" help:"Split paragraphs into speaker blocks"`
	Unparse UnparseCmd `cmd:"" help:"Rebuild paragraphs from a parsed script"`
	Show    ShowCmd    `cmd:"" help:"Print the blocks of a script file"`
}

// QuotesGroup contains quotation-mark helpers.
type QuotesGroup struct {
	Level2 Level2Cmd `cmd:"" name:"level2" help:"List plausible second-level marks for a first level"`
}

// ControlDataGroup contains control-data operations.
type ControlDataGroup struct {
	Import ControlDataImportCmd `cmd:"" help:"Load tab-separated control data into SQLite"`
}

// Env is what every command runs with.
type Env struct {
	Config config.Config
	Out    io.Writer
}

func setup() (*Env, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}
	if CLI.LogLevel != "" {
		cfg.Logging.Level = CLI.LogLevel
	}
	if CLI.LogFormat != "" {
		cfg.Logging.Format = CLI.LogFormat
	}
	if err := initLogging(cfg.Logging); err != nil {
		return nil, err
	}
	return &Env{Config: cfg, Out: os.Stdout}, nil
}

func initLogging(lc config.LoggingConfig) error {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(lc.Format)
	if err != nil {
		return err
	}
	if lc.File != "" {
		logging.InitFileLogger(logging.FileOptions{
			Path:       lc.File,
			MaxSizeMB:  lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAgeDays: lc.MaxAgeDays,
			Compress:   lc.Compress,
		}, level, format)
		return nil
	}
	logging.InitLogger(level, format)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("juniper-script"),
		kong.Description("JuniperScript - dramatized script preparation"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	env, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "juniper-script: %v\n", err)
		os.Exit(1)
	}
	err = ctx.Run(env)
	if err != nil {
		logging.Error("command_failed", "command", ctx.Command(), "error", err)
	}
	logging.Close()
	ctx.FatalIfErrorf(err)
}
