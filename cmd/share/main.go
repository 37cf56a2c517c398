package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/blobshare/internal/blobstore"
	"github.com/dvloznov/blobshare/internal/config"
	"github.com/dvloznov/blobshare/internal/logger"
	"github.com/dvloznov/blobshare/internal/services"
	"github.com/dvloznov/blobshare/internal/share"
	"github.com/dvloznov/blobshare/internal/terminal"
)

// maxParallelUploads bounds concurrent invocations of one upload command.
const maxParallelUploads = 4

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "upload":
		runUpload(log)
	case "services":
		runServices()
	case "config":
		runConfig(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("blobshare - share recordings through cloud blob storage")
	fmt.Println("\nUsage:")
	fmt.Println("  share <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  upload     Upload files and copy their public URLs")
	fmt.Println("  services   List share services, formats and config fields")
	fmt.Println("  config     Open the config file in $EDITOR")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'share <command> -h' for more information on a command.")
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	serviceName := fs.String("service", "", "Share service (defaults to default_service from the config)")
	configPath := fs.String("config", "", "Path to the config file")
	format := fs.String("format", "", "Format of the files (defaults to each file's extension)")
	name := fs.String("name", "", "Default filename (defaults to the file's base name, single file only)")
	dryRun := fs.Bool("dry-run", false, "Upload to an in-memory store instead of the service")
	fs.Parse(os.Args[2:])

	files := fs.Args()
	if len(files) == 0 {
		log.Fatal().Msg("Usage: share upload [options] FILE...")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []services.Option
	var memory *blobstore.Memory
	if *dryRun {
		memory = blobstore.NewMemory()
		opts = append(opts, services.WithOpener(func(context.Context, share.Config) (blobstore.Store, error) {
			return memory, nil
		}))
	}

	cfg, err := config.Load(*configPath, services.All(opts...))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	settings, err := cfg.Settings()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read settings")
	}
	log = log.Level(logger.ParseLevel(settings.Log.Level))
	ctx = logger.WithContext(ctx, log)

	if *serviceName == "" {
		*serviceName = settings.DefaultService
	}
	svc, err := services.Lookup(*serviceName, opts...)
	if err != nil {
		log.Fatal().Err(err).Strs("available", services.Names()).Msg("Unknown service")
	}
	if missing := cfg.Missing(svc); len(missing) > 0 && !*dryRun {
		log.Fatal().
			Str("service", svc.Name).
			Strs("missing", missing).
			Str("config", cfg.Path()).
			Msg("Service is not configured, run 'share config'")
	}
	if unknown := services.UnknownPlaceholders(svc, cfg.Service(svc.Name)); len(unknown) > 0 {
		log.Warn().Str("service", svc.Name).Strs("unknown", unknown).Msg("Patterns contain unknown placeholders, they are kept as written")
	}

	invocations, err := prepareInvocations(svc, files, *format, *name)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot share")
	}

	var hostOpts []terminal.Option
	if len(invocations) > 1 {
		// Several progress bars cannot share one terminal line.
		hostOpts = append(hostOpts, terminal.WithTTY(false))
	}
	host := terminal.New(log, hostOpts...)

	g := new(errgroup.Group)
	g.SetLimit(maxParallelUploads)
	for _, inv := range invocations {
		inv := inv
		inv.Config = cfg.Service(svc.Name)
		inv.Cancel = stop
		inv.OpenConfigFile = func() {
			if err := cfg.OpenInEditor(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to open config file")
			}
		}
		sc := host.Context(inv)

		g.Go(func() error {
			if err := svc.Action(ctx, sc); err != nil {
				log.Error().Err(err).Str("file", inv.Path).Msg("Share failed")
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		os.Exit(1)
	}

	if memory != nil {
		container := cfg.Service(svc.Name).Get(share.KeyContainer)
		log.Info().
			Str("container", container).
			Strs("objects", memory.Names(container)).
			Msg("Dry run finished, nothing was uploaded")
	}
}

// prepareInvocations builds one invocation per file. format and name
// override the values derived from each path.
func prepareInvocations(svc *share.Service, files []string, format, name string) ([]terminal.Invocation, error) {
	if name != "" && len(files) > 1 {
		return nil, errors.New("-name can only be used with a single file")
	}

	invocations := make([]terminal.Invocation, 0, len(files))
	for _, path := range files {
		inv := terminal.Invocation{
			Path:            path,
			Format:          format,
			DefaultFileName: name,
		}
		if inv.Format == "" {
			inv.Format = strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		}
		if inv.DefaultFileName == "" {
			inv.DefaultFileName = filepath.Base(path)
		}
		if !svc.Supports(inv.Format) {
			return nil, fmt.Errorf("%s: %s does not support format %q (supported: %s)",
				path, svc.Title, inv.Format, strings.Join(svc.Formats, ", "))
		}
		invocations = append(invocations, inv)
	}
	return invocations, nil
}

func runServices() {
	bold := color.New(color.Bold)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	for i, svc := range services.All() {
		if i > 0 {
			fmt.Fprintln(w)
		}
		bold.Fprintf(w, "%s (%s)\n", svc.Title, svc.Name)
		fmt.Fprintf(w, "  formats:\t%s\n", strings.Join(svc.Formats, ", "))
		fmt.Fprintf(w, "  placeholders:\t%s\n", strings.Join(svc.Placeholders, ", "))
		for _, f := range svc.Config {
			required := ""
			if f.Required {
				required = " (required)"
			}
			fmt.Fprintf(w, "  %s:\t%s%s, default %q\n", f.Key, f.Title, required, f.Default)
		}
	}
	w.Flush()
}

func runConfig(log zerolog.Logger) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to the config file")
	fs.Parse(os.Args[2:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath, services.All())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if err := cfg.OpenInEditor(ctx); err != nil {
		log.Fatal().Err(err).Str("config", cfg.Path()).Msg("Failed to edit config")
	}

	fmt.Printf("Config saved at %s\n", cfg.Path())
}
