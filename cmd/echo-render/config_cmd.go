package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"echo-render/internal/config"

	"github.com/pelletier/go-toml/v2"
)

func configMain(cfg config.Config, args []string, out io.Writer) error {
	action := "show"
	if len(args) > 0 {
		action, args = args[0], args[1:]
	}
	switch action {
	case "show":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		_, err = out.Write(data)
		return err
	case "path":
		_, err := fmt.Fprintln(out, cfg.Source)
		return err
	case "init":
		fs := flag.NewFlagSet("config init", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		force := fs.Bool("force", false, "Overwrite an existing config file")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if _, err := os.Stat(cfg.Source); err == nil && !*force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", cfg.Source)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", cfg.Source, err)
		}
		if err := config.Save(cfg.Source, config.Default()); err != nil {
			return fmt.Errorf("write %s: %w", cfg.Source, err)
		}
		_, err := fmt.Fprintf(out, "wrote %s\n", cfg.Source)
		return err
	default:
		return fmt.Errorf("unknown config action %q", action)
	}
}
