package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tech-arch1tect/backyard/app"
	"github.com/tech-arch1tect/backyard/services/acl"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "serve":
		err = runServe(args)
	case "seed":
		err = runSeed(args)
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  serve   Run the HTTP API")
	fmt.Fprintln(os.Stderr, "  seed    Load modules, permissions and roles from a YAML file")
	os.Exit(2)
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	application, err := app.NewApp().WithAutoConfig().Build()
	if err != nil {
		return err
	}
	application.Run()
	return nil
}

func runSeed(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	file := fs.String("file", "", "seed file path (defaults to ACL_SEED_FILE)")
	timeout := fs.Duration("timeout", 30*time.Second, "seed timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	application, err := app.NewApp().WithAutoConfig().Build()
	if err != nil {
		return err
	}
	defer application.Close()

	path := *file
	if path == "" {
		path = application.Config().ACL.SeedFile
	}
	if path == "" {
		return fmt.Errorf("no seed file given: pass -file or set ACL_SEED_FILE")
	}

	seed, err := acl.LoadSeedFile(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := application.ACL().Seed(ctx, seed)
	if err != nil {
		return err
	}

	fmt.Printf("seeded %d modules, %d permissions, %d roles\n", result.Modules, result.Permissions, result.Roles)
	return nil
}
