// Package main is the entry point for the lolrus S3 browser CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/lolrus/lolrus/internal/config"
	"github.com/lolrus/lolrus/internal/connections"
	"github.com/lolrus/lolrus/internal/listing"
	"github.com/lolrus/lolrus/internal/logging"
	"github.com/lolrus/lolrus/internal/metrics"
	"github.com/lolrus/lolrus/internal/storage"
)

const timeDisplay = "2006-01-02 15:04:05"

func usage() {
	fmt.Fprintf(os.Stderr, `usage: lolrus [flags] <command> [args]

Connection commands:
  conn-add <name> <endpoint> [region]   save a connection (credentials via env)
  conn-ls                               list saved connections
  conn-rm <name>                        remove a connection
  conn-rename <old> <new>               rename a connection
  endpoints                             list common S3-compatible endpoints

Storage commands (first argument is a saved connection name):
  test <conn>                           check the connection works
  buckets <conn>                        list buckets
  ls <conn> <bucket> [prefix]           list objects and folders
  info <conn> <bucket> <key>            show object metadata
  cat <conn> <bucket> <key>             print object body (bounded)
  get <conn> <bucket> <key> <path>      download an object to a file
  put <conn> <bucket> <path> <key>      upload a file
  rm <conn> <bucket> <key>...           delete objects
  empty <conn> <bucket>                 delete every object in a bucket (-yes)

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: ~/.config/lolrus/config.yaml)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (default: from config or info)")
	logFormat := flag.String("log-format", "", "log format: text, json (default: from config or text)")
	sortBy := flag.String("sort", "", "ls sort column: name, size, modified, class")
	sortDesc := flag.Bool("desc", false, "sort descending")
	maxBytes := flag.Int64("max-bytes", 0, "size cap for cat in bytes (default: from config)")
	assumeYes := flag.Bool("yes", false, "skip the confirmation prompt for empty")
	flag.Usage = usage
	flag.Parse()

	if *configPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			*configPath = home + "/.config/lolrus/config.yaml"
		} else {
			*configPath = "config.yaml"
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	metrics.Register()
	if cfg.Debug.Enabled {
		startDebugListener(cfg.Debug.Addr)
	}

	app := &app{
		cfg:       cfg,
		sortBy:    *sortBy,
		sortDesc:  *sortDesc,
		maxBytes:  *maxBytes,
		assumeYes: *assumeYes,
	}
	if err := app.run(context.Background(), args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "lolrus: %v\n", err)
		os.Exit(1)
	}
}

// app carries per-invocation state into command handlers instead of
// process-wide globals.
type app struct {
	cfg       *config.Config
	sortBy    string
	sortDesc  bool
	maxBytes  int64
	assumeYes bool
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	store, err := connections.NewStore(a.cfg.Connections.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	mgr := connections.NewManager(store, connections.EnvSecretStore{}, a.cfg.Connections.SecretService)

	switch command {
	case "conn-add":
		return a.cmdConnAdd(ctx, mgr, args)
	case "conn-ls":
		return a.cmdConnList(ctx, mgr)
	case "conn-rm":
		return a.cmdConnRemove(ctx, mgr, args)
	case "conn-rename":
		return a.cmdConnRename(ctx, mgr, args)
	case "endpoints":
		return a.cmdEndpoints()
	case "test", "buckets", "ls", "info", "cat", "get", "put", "rm", "empty":
		if len(args) < 1 {
			return fmt.Errorf("%s: missing connection name", command)
		}
		client, err := a.openClient(ctx, mgr, args[0])
		if err != nil {
			return err
		}
		defer client.Close()
		return a.runStorage(ctx, client, command, args[1:])
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// openClient resolves a saved connection and builds a storage client for it.
func (a *app) openClient(ctx context.Context, mgr *connections.Manager, name string) (*storage.Client, error) {
	conn, ok, err := mgr.Get(ctx, name, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no saved connection named %q", name)
	}
	if conn.AccessKey == "" || conn.SecretKey == "" {
		ak, sk := connections.CredentialEnvVars(a.cfg.Connections.SecretService, name)
		return nil, fmt.Errorf("connection %q has no credentials: set %s and %s", name, ak, sk)
	}
	return storage.New(ctx, storage.Settings{
		Endpoint:         conn.Endpoint,
		Region:           conn.Region,
		AccessKey:        conn.AccessKey,
		SecretKey:        conn.SecretKey,
		UsePathStyle:     a.cfg.Client.UsePathStyle,
		Workers:          a.cfg.Client.Workers,
		RetryMaxAttempts: a.cfg.Client.RetryMaxAttempts,
		ConnectTimeout:   secondsDuration(a.cfg.Client.ConnectTimeoutSeconds),
		ReadTimeout:      secondsDuration(a.cfg.Client.ReadTimeoutSeconds),
	}, nil)
}

func (a *app) runStorage(ctx context.Context, client *storage.Client, command string, args []string) error {
	switch command {
	case "test":
		if !client.TestConnection(ctx) {
			return fmt.Errorf("connection test failed")
		}
		fmt.Println("ok")
		return nil
	case "buckets":
		return a.cmdBuckets(ctx, client)
	case "ls":
		if len(args) < 1 {
			return fmt.Errorf("ls: missing bucket")
		}
		prefix := ""
		if len(args) > 1 {
			prefix = args[1]
		}
		return a.cmdList(ctx, client, args[0], prefix)
	case "info":
		if len(args) < 2 {
			return fmt.Errorf("info: need bucket and key")
		}
		return a.cmdInfo(ctx, client, args[0], args[1])
	case "cat":
		if len(args) < 2 {
			return fmt.Errorf("cat: need bucket and key")
		}
		return a.cmdCat(ctx, client, args[0], args[1])
	case "get":
		if len(args) < 3 {
			return fmt.Errorf("get: need bucket, key, and local path")
		}
		return awaitOperation(func(onProgress, onComplete storage.OperationCallback) *storage.Operation {
			return client.DownloadObjectAsync(ctx, args[0], args[1], args[2], onProgress, onComplete)
		})
	case "put":
		if len(args) < 3 {
			return fmt.Errorf("put: need bucket, local path, and key")
		}
		return awaitOperation(func(onProgress, onComplete storage.OperationCallback) *storage.Operation {
			return client.UploadFileAsync(ctx, args[0], args[2], args[1], onProgress, onComplete)
		})
	case "rm":
		if len(args) < 2 {
			return fmt.Errorf("rm: need bucket and at least one key")
		}
		return awaitOperation(func(onProgress, onComplete storage.OperationCallback) *storage.Operation {
			return client.DeleteObjectsAsync(ctx, args[0], args[1:], onProgress, onComplete)
		})
	case "empty":
		if len(args) < 1 {
			return fmt.Errorf("empty: missing bucket")
		}
		if !a.assumeYes {
			return fmt.Errorf("empty deletes every object in %s; re-run with -yes to confirm", args[0])
		}
		return awaitOperation(func(onProgress, onComplete storage.OperationCallback) *storage.Operation {
			return client.EmptyBucketAsync(ctx, args[0], onProgress, onComplete)
		})
	}
	return fmt.Errorf("unknown command %q", command)
}

func (a *app) cmdConnAdd(ctx context.Context, mgr *connections.Manager, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("conn-add: need name and endpoint")
	}
	conn := connections.Connection{Name: args[0], Endpoint: args[1]}
	if len(args) > 2 {
		conn.Region = args[2]
	}
	if err := mgr.Save(ctx, conn); err != nil {
		return err
	}
	ak, sk := connections.CredentialEnvVars(a.cfg.Connections.SecretService, conn.Name)
	fmt.Printf("saved %q; provide credentials via %s and %s\n", conn.Name, ak, sk)
	return nil
}

func (a *app) cmdConnList(ctx context.Context, mgr *connections.Manager) error {
	conns, err := mgr.List(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tENDPOINT\tREGION")
	for _, c := range conns {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, c.Endpoint, c.Region)
	}
	return w.Flush()
}

func (a *app) cmdConnRemove(ctx context.Context, mgr *connections.Manager, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("conn-rm: missing name")
	}
	ok, err := mgr.Delete(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no saved connection named %q", args[0])
	}
	return nil
}

func (a *app) cmdConnRename(ctx context.Context, mgr *connections.Manager, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("conn-rename: need old and new name")
	}
	ok, err := mgr.Rename(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("cannot rename %q to %q", args[0], args[1])
	}
	return nil
}

func (a *app) cmdEndpoints() error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for name, url := range connections.CommonEndpoints {
		fmt.Fprintf(w, "%s\t%s\n", name, url)
	}
	return w.Flush()
}

func (a *app) cmdBuckets(ctx context.Context, client *storage.Client) error {
	buckets, err := client.ListBuckets(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, b := range buckets {
		created := ""
		if !b.CreationDate.IsZero() {
			created = b.CreationDate.Format(timeDisplay)
		}
		fmt.Fprintf(w, "%s\t%s\n", b.Name, created)
	}
	return w.Flush()
}

func (a *app) cmdList(ctx context.Context, client *storage.Client, bucket, prefix string) error {
	objects, prefixes, err := client.ListObjects(ctx, bucket, prefix, "/")
	if err != nil {
		return err
	}
	listing.Apply(objects, prefixes, listing.ParseColumn(a.sortBy), !a.sortDesc)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, p := range prefixes {
		fmt.Fprintf(w, "%s\t-\t-\t-\n", p)
	}
	for _, o := range objects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			o.Key, humanize.IBytes(uint64(o.Size)), o.LastModified.Format(timeDisplay), o.StorageClass)
	}
	return w.Flush()
}

func (a *app) cmdInfo(ctx context.Context, client *storage.Client, bucket, key string) error {
	info, err := client.GetObjectInfo(ctx, bucket, key)
	if err != nil {
		return err
	}
	fmt.Printf("Content-Type:   %s\n", info.ContentType)
	fmt.Printf("Content-Length: %s (%d bytes)\n", humanize.IBytes(uint64(info.ContentLength)), info.ContentLength)
	fmt.Printf("Last-Modified:  %s\n", info.LastModified.Format(timeDisplay))
	fmt.Printf("ETag:           %s\n", info.ETag)
	fmt.Printf("Storage-Class:  %s\n", info.StorageClass)
	for k, v := range info.Metadata {
		fmt.Printf("x-amz-meta-%s: %s\n", k, v)
	}
	return nil
}

func (a *app) cmdCat(ctx context.Context, client *storage.Client, bucket, key string) error {
	limit := a.maxBytes
	if limit == 0 {
		limit = a.cfg.Preview.TextMaxBytes
	}
	data, err := client.DownloadToMemory(ctx, bucket, key, limit)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

// awaitOperation starts an async operation, renders progress to stderr,
// forwards SIGINT as a cooperative cancel, and blocks until the completion
// callback fires.
func awaitOperation(start func(onProgress, onComplete storage.OperationCallback) *storage.Operation) error {
	done := make(chan struct{})
	op := start(renderProgress, func(*storage.Operation) { close(done) })

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-done:
			fmt.Fprintln(os.Stderr)
			switch op.Status() {
			case storage.StatusCompleted:
				fmt.Fprintf(os.Stderr, "%s: done\n", op.Description())
				return nil
			case storage.StatusCancelled:
				fmt.Fprintf(os.Stderr, "%s: cancelled after %d of %d\n",
					op.Description(), op.CompletedItems(), op.TotalItems())
				return nil
			default:
				return fmt.Errorf("%s: %s", op.Description(), op.Err())
			}
		case <-sigCh:
			fmt.Fprintf(os.Stderr, "\ncancelling %s...\n", op.ID())
			op.Cancel()
		}
	}
}

func renderProgress(op *storage.Operation) {
	fmt.Fprintf(os.Stderr, "\r%s: %3.0f%% (%d/%d)",
		op.Description(), op.Progress()*100, op.CompletedItems(), op.TotalItems())
}

func secondsDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
