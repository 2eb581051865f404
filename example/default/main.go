package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	carve "github.com/simsong/bulk-extractor-sub001"
	"github.com/simsong/bulk-extractor-sub001/pkg/config"
	_ "github.com/simsong/bulk-extractor-sub001/plugin/mp4"
)

func main() {
	conf := flag.String("c", "", "config file")
	outDir := flag.String("o", "", "output directory, overrides the config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-c config.yaml] [-o outdir] image...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	userConfig, err := config.LoadFile(*conf)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if *outDir != "" {
		if userConfig == nil {
			userConfig = map[string]any{}
		}
		global, _ := userConfig["global"].(map[string]any)
		if global == nil {
			global = map[string]any{}
			userConfig["global"] = global
		}
		global["outdir"] = *outDir
	}
	s, err := carve.NewServer(userConfig)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer s.Close()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err = s.Run(ctx, flag.Args()...); err != nil {
		s.Warn("stopped", "reason", err)
	}
}
