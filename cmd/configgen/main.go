package main

import (
	"flag"
	"log"

	"github.com/danmuck/systolink/internal/config"
)

const defaultPath = "cmd/systolictl/config.toml"

func main() {
	output := flag.String("output", defaultPath, "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", defaultPath, "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		s, err := config.LoadSessionFile(*input)
		if err != nil {
			log.Fatal(err)
		}
		cfg := s.Session
		log.Printf("Validated config at %s (port=%s n=%d mode=%s sync=%s)",
			*input, cfg.Transport.Name, cfg.Dimension, cfg.Mode, cfg.Sync)
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote config template to %s", *output)
}
