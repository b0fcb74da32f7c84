package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/delehef/fusta/internal/backing"
	"github.com/delehef/fusta/internal/catalog"
	"github.com/delehef/fusta/internal/config"
	"github.com/delehef/fusta/internal/fastaparse"
	"github.com/delehef/fusta/internal/mount"
	"github.com/delehef/fusta/internal/overlay"
	"github.com/delehef/fusta/internal/vfs"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("flags: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := log.New(os.Stderr, "fusta: ", log.LstdFlags)
	if err := run(cfg, logger); err != nil {
		logger.Fatalf("%v", err)
	}
}

// parseFlags implements §6's command-line surface: a positional FASTA path
// plus the mount/cache/daemon flags, mirroring avogabo-EDRmount's main()
// shape of flag.*Var declarations followed by flag.Parse().
func parseFlags(args []string) (config.Config, error) {
	fs := flag.NewFlagSet("fusta", flag.ContinueOnError)

	cfg := config.Default()
	var cache, sep string
	var noDaemon bool
	fs.StringVar(&cfg.Mountpoint, "o", "", "mountpoint (default fusta-<basename>)")
	fs.StringVar(&cfg.Mountpoint, "mountpoint", "", "mountpoint (default fusta-<basename>)")
	fs.StringVar(&cache, "cache", string(cfg.Cache), "backing store: file|mmap|memory")
	fs.Int64Var(&cfg.MaxCacheMB, "C", cfg.MaxCacheMB, "max resident cache size in MB")
	fs.Int64Var(&cfg.MaxCacheMB, "max-cache", cfg.MaxCacheMB, "max resident cache size in MB")
	fs.BoolVar(&noDaemon, "D", false, "run in the foreground instead of daemonizing")
	fs.BoolVar(&noDaemon, "no-daemon", false, "run in the foreground instead of daemonizing")
	fs.BoolVar(&cfg.NonEmpty, "E", false, "proceed if mountpoint is not empty")
	fs.BoolVar(&cfg.NonEmpty, "non-empty", false, "proceed if mountpoint is not empty")
	fs.StringVar(&sep, "S", string(cfg.Sep), "field separator for infos.csv")
	fs.StringVar(&sep, "sep", string(cfg.Sep), "field separator for infos.csv")
	fs.BoolVar(&cfg.AllowOverwrite, "W", false, "allow overwriting existing fragments on rename/append")
	fs.BoolVar(&cfg.AllowOverwrite, "allow-overwrite", false, "allow overwriting existing fragments on rename/append")
	fs.IntVar(&cfg.Verbosity, "v", 0, "verbosity level")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}
	if fs.NArg() != 1 {
		return config.Config{}, fmt.Errorf("expected exactly one positional FASTA argument, got %d", fs.NArg())
	}
	cfg.Source = fs.Arg(0)

	if cache != "" {
		cfg.Cache = config.CacheKind(cache)
	}
	if sep != "" {
		cfg.Sep = []rune(sep)[0]
	}
	if noDaemon {
		cfg.Daemonize = false
	}

	return cfg.WithDerivedMountpoint(), nil
}

// run builds the Fragment Catalog, Backing Store, and Write Overlay from
// cfg, mounts the Virtual Tree, and blocks until the mount is torn down by
// a signal or an external unmount (§9 initialization order).
func run(cfg config.Config, logger *log.Logger) error {
	ctx := context.Background()

	cat, err := catalog.Open(ctx)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()

	ranges, err := index(ctx, cfg.Source, cat)
	if err != nil {
		return fmt.Errorf("index %s: %w", cfg.Source, err)
	}

	variant, err := openVariant(cfg, ranges)
	if err != nil {
		return fmt.Errorf("open backing store: %w", err)
	}
	store := backing.NewStore(variant)
	defer store.Close()

	spillDir, err := os.MkdirTemp("", "fusta-overlay-")
	if err != nil {
		return fmt.Errorf("create overlay spill dir: %w", err)
	}
	defer os.RemoveAll(spillDir)

	ov, err := overlay.New(spillDir, cfg.MaxCacheMB*1<<20)
	if err != nil {
		return fmt.Errorf("open overlay: %w", err)
	}

	fsys := vfs.New(cfg.Source, cfg.Sep, cfg.AllowOverwrite, cat, store, ov, spillDir, cfg.MaxCacheMB, logger)

	m, err := mount.Start(mount.Options{Mountpoint: cfg.Mountpoint, NonEmpty: cfg.NonEmpty}, fsys)
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}
	logger.Printf("mounted %s at %s (cache=%s)", cfg.Source, cfg.Mountpoint, cfg.Cache)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Printf("signal received, unmounting %s", cfg.Mountpoint)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer shutdownCancel()
		if err := m.Stop(shutdownCtx); err != nil {
			logger.Printf("unmount: %v", err)
		}
	}()

	return m.Wait()
}

// index performs the single streaming pass over source (§4.1), inserting
// every fragment it finds into cat and collecting the payload ranges the
// memory-resident backing store needs at construction time.
func index(ctx context.Context, source string, cat *catalog.Catalog) ([]backing.FragmentRange, error) {
	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	var ranges []backing.FragmentRange
	err = fastaparse.Scan(f, func(r fastaparse.Record) error {
		fa, seq, get := cat.AllocateInodeTriple()
		frag := catalog.Fragment{
			ID:            r.ID,
			Extra:         r.Extra,
			HeaderStart:   r.HeaderStart,
			HeaderEnd:     r.HeaderEnd,
			PayloadStart:  r.PayloadStart,
			PayloadEnd:    r.PayloadEnd,
			LogicalLength: r.LogicalLength,
			InoFasta:      fa,
			InoSeq:        seq,
			InoGet:        get,
		}
		if err := cat.Insert(ctx, frag, false); err != nil {
			return err
		}
		ranges = append(ranges, backing.FragmentRange{ID: r.ID, Start: r.PayloadStart, End: r.PayloadEnd})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ranges, nil
}

func openVariant(cfg config.Config, ranges []backing.FragmentRange) (backing.Variant, error) {
	switch cfg.Cache {
	case config.CacheFile:
		return backing.NewPositional(cfg.Source)
	case config.CacheMmap:
		return backing.NewMapped(cfg.Source)
	case config.CacheMemory:
		return backing.NewResident(cfg.Source, ranges)
	default:
		return nil, fmt.Errorf("unknown cache kind %q", cfg.Cache)
	}
}
