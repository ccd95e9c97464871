package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key layout owned by the source context cache in internal/core.
const sourceContextKeyPrefix = "source:context:"

const (
	cacheScanCount      = 1000
	cacheDeleteBatch    = 100
	defaultCacheTimeout = 30 * time.Second
)

type listSourceCacheOptions struct {
	Source  string
	Limit   int
	Timeout time.Duration
}

type clearSourceCacheOptions struct {
	Source  string
	All     bool
	DryRun  bool
	Yes     bool
	Timeout time.Duration
}

func runListSourceCache(cmdCtx *commandContext, args []string) error {
	opts, err := parseListSourceCacheFlags(args)
	if err != nil {
		return err
	}

	pattern := buildSourceCachePattern(opts.Source)

	return withRedis(cmdCtx, opts.Timeout, func(ctx context.Context, client redis.UniversalClient) error {
		cmdCtx.Logger.Info("scanning redis", "pattern", pattern)
		result, scanErr := scanSourceCacheEntries(ctx, client, cmdCtx.Logger, pattern, opts.Limit)
		if scanErr != nil {
			return scanErr
		}
		return printSourceCacheEntries(result, opts.Limit)
	})
}

func runClearSourceCache(cmdCtx *commandContext, args []string) error {
	opts, err := parseClearSourceCacheFlags(args)
	if err != nil {
		return err
	}

	pattern := buildSourceCachePattern(opts.Source)

	confirmOpts := cacheClearConfirmOptions{
		dryRun: opts.DryRun,
		yes:    opts.Yes,
		target: fmt.Sprintf("redis keys matching %q", pattern),
	}
	if confirmErr := confirmAction(confirmOpts, "clear source context cache"); confirmErr != nil {
		return confirmErr
	}

	return withRedis(cmdCtx, opts.Timeout, func(ctx context.Context, client redis.UniversalClient) error {
		cmdCtx.Logger.Info("scanning redis", "pattern", pattern, "dry_run", opts.DryRun)

		keys, scanErr := collectSourceCacheKeys(ctx, client, pattern)
		if scanErr != nil {
			return scanErr
		}
		if len(keys) == 0 {
			return writeln(os.Stdout, "No cached source context entries matched.")
		}
		if opts.DryRun {
			return writef(os.Stdout, "Dry run: %d cached source context entries would be deleted.\n", len(keys))
		}

		for start := 0; start < len(keys); start += cacheDeleteBatch {
			end := min(start+cacheDeleteBatch, len(keys))
			if delErr := client.Del(ctx, keys[start:end]...).Err(); delErr != nil {
				return fmt.Errorf("delete redis keys: %w", delErr)
			}
		}

		cmdCtx.Logger.Info("redis keys deleted", "count", len(keys))
		return writef(os.Stdout, "Deleted %d cached source context entries.\n", len(keys))
	})
}

func parseListSourceCacheFlags(args []string) (listSourceCacheOptions, error) {
	fs := flag.NewFlagSet("list-source-cache", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := listSourceCacheOptions{
		Limit:   100,
		Timeout: defaultCacheTimeout,
	}

	fs.StringVar(&opts.Source, "source", "", "Only show the cache entry for this source ID")
	fs.IntVar(&opts.Limit, "limit", 100, "Maximum number of entries to display (0 shows all)")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCacheTimeout, "Maximum duration to wait for the scan")

	if err := fs.Parse(args); err != nil {
		return listSourceCacheOptions{}, err
	}

	if opts.Timeout <= 0 {
		return listSourceCacheOptions{}, errors.New("--timeout must be greater than zero")
	}
	if opts.Limit < 0 {
		return listSourceCacheOptions{}, errors.New("--limit must be zero or greater")
	}

	return opts, nil
}

func parseClearSourceCacheFlags(args []string) (clearSourceCacheOptions, error) {
	fs := flag.NewFlagSet("clear-source-cache", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := clearSourceCacheOptions{
		Timeout: defaultCacheTimeout,
	}

	fs.StringVar(&opts.Source, "source", "", "Clear the cache entry for this source ID")
	fs.BoolVar(&opts.All, "all", false, "Clear cache entries for all sources")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Report what would be deleted without deleting")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCacheTimeout, "Maximum duration to wait for the purge")

	if err := fs.Parse(args); err != nil {
		return clearSourceCacheOptions{}, err
	}

	if opts.Timeout <= 0 {
		return clearSourceCacheOptions{}, errors.New("--timeout must be greater than zero")
	}
	if opts.Source == "" && !opts.All {
		return clearSourceCacheOptions{}, errors.New("one of --source or --all is required")
	}
	if opts.Source != "" && opts.All {
		return clearSourceCacheOptions{}, errors.New("--source and --all are mutually exclusive")
	}

	return opts, nil
}

func buildSourceCachePattern(sourceID string) string {
	if sourceID == "" {
		return sourceContextKeyPrefix + "*"
	}
	return sourceContextKeyPrefix + sourceID
}

type cacheEntry struct {
	Key      string
	SourceID string
	TTL      time.Duration
}

type cacheScanResult struct {
	Entries []cacheEntry
	Total   int
}

func scanSourceCacheEntries(
	ctx context.Context,
	client redis.UniversalClient,
	logger *slog.Logger,
	pattern string,
	limit int,
) (cacheScanResult, error) {
	var result cacheScanResult

	iter := client.Scan(ctx, 0, pattern, cacheScanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		result.Total++
		if limit > 0 && len(result.Entries) >= limit {
			continue
		}

		sourceID, ok := strings.CutPrefix(key, sourceContextKeyPrefix)
		if !ok {
			logger.Warn("skipping redis key", "key", key)
			continue
		}

		ttl, err := client.TTL(ctx, key).Result()
		if err != nil {
			return cacheScanResult{}, fmt.Errorf("query redis ttl for key %q: %w", key, err)
		}

		result.Entries = append(result.Entries, cacheEntry{
			Key:      key,
			SourceID: sourceID,
			TTL:      ttl,
		})
	}
	if err := iter.Err(); err != nil {
		return cacheScanResult{}, fmt.Errorf("scan redis: %w", err)
	}

	sort.Slice(result.Entries, func(i, j int) bool {
		return result.Entries[i].SourceID < result.Entries[j].SourceID
	})
	return result, nil
}

func collectSourceCacheKeys(ctx context.Context, client redis.UniversalClient, pattern string) ([]string, error) {
	iter := client.Scan(ctx, 0, pattern, cacheScanCount).Iterator()
	keys := make([]string, 0)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan redis: %w", err)
	}
	return keys, nil
}

func printSourceCacheEntries(result cacheScanResult, limit int) error {
	if err := writef(os.Stdout, "Source context cache entries"); err != nil {
		return fmt.Errorf("write cache entries header: %w", err)
	}
	if limit > 0 {
		if err := writef(os.Stdout, " (showing up to %d)", limit); err != nil {
			return fmt.Errorf("write cache entries limit: %w", err)
		}
	}
	if err := writeln(os.Stdout); err != nil {
		return fmt.Errorf("write cache entries header newline: %w", err)
	}

	if len(result.Entries) == 0 {
		if err := writeln(os.Stdout, "  (no keys matched)"); err != nil {
			return fmt.Errorf("write cache entries empty message: %w", err)
		}
		return nil
	}

	if err := renderSourceCacheTable(result.Entries); err != nil {
		return err
	}

	if err := writef(os.Stdout, "Total keys matched: %d\n", result.Total); err != nil {
		return fmt.Errorf("write cache entries total: %w", err)
	}
	if limit > 0 && result.Total > len(result.Entries) {
		if err := writeln(os.Stdout, "More keys available; increase --limit to view additional entries."); err != nil {
			return fmt.Errorf("write cache entries more-keys message: %w", err)
		}
	}
	return nil
}

func renderSourceCacheTable(entries []cacheEntry) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "SOURCE ID\tTTL\tKEY"); err != nil {
		return fmt.Errorf("write cache entries header row: %w", err)
	}

	for _, entry := range entries {
		if err := writef(
			tw,
			"%s\t%s\t%s\n",
			entry.SourceID,
			formatRedisTTL(entry.TTL),
			entry.Key,
		); err != nil {
			return fmt.Errorf("write cache entry row: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush cache entries table: %w", err)
	}
	return nil
}

type cacheClearConfirmOptions struct {
	dryRun bool
	yes    bool
	target string
}

func (c cacheClearConfirmOptions) IsDryRun() bool { return c.dryRun }
func (c cacheClearConfirmOptions) IsYes() bool    { return c.yes }
func (c cacheClearConfirmOptions) GetWarning() string {
	return "WARNING: this will delete cached source context entries; workers rebuild them on demand."
}
func (c cacheClearConfirmOptions) GetTarget() string { return c.target }
