// Command boxcheck is a deployment diagnostic. It brings up the configured
// storage backend and one sandbox, runs a command inside it, and reports the
// exit classification and resource usage. Run it on a new host before
// trusting the host with real evaluations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/shlex"
	"go.uber.org/zap"

	"gradebox/internal/config"
	"gradebox/internal/language"
	"gradebox/internal/sandbox"
	"gradebox/internal/storage"
	"gradebox/pkg/utils/logger"
)

const defaultConfigPath = "configs/gradebox.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	command := flag.String("cmd", "/bin/true", "Command to run inside the sandbox")
	putFile := flag.String("put", "", "Host file to place in the sandbox through the blob store")
	stdoutFile := flag.String("stdout", "", "Sandbox-relative file to print after the run")
	multiproc := flag.Bool("multiprocess", false, "Lift the single-process ceiling")
	trusted := flag.Bool("trusted", false, "Use the trusted limits instead of compilation limits")
	keep := flag.Bool("keep", false, "Keep the sandbox directory after the run")
	listLangs := flag.Bool("languages", false, "List the registered languages and exit")
	flag.Parse()

	if *listLangs {
		if err := listLanguages(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "boxcheck failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath, *command, *putFile, *stdoutFile, *multiproc, *trusted, *keep); err != nil {
		fmt.Fprintf(os.Stderr, "boxcheck failed: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, command, putFile, stdoutFile string, multiproc, trusted, keep bool) error {
	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load app config failed: %w", err)
	}
	if keep {
		appCfg.Sandbox.KeepSandbox = true
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		return fmt.Errorf("init logger failed: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	ctx := context.Background()

	store, err := buildStore(appCfg)
	if err != nil {
		return fmt.Errorf("init storage failed: %w", err)
	}

	box, err := buildSandbox(store, appCfg)
	if err != nil {
		return fmt.Errorf("create sandbox failed: %w", err)
	}
	defer func() {
		if err := box.Cleanup(true); err != nil {
			logger.Warn(ctx, "sandbox cleanup failed", zap.Error(err))
		}
	}()
	logger.Info(ctx, "sandbox created", zap.String("root", box.RootPath()))

	limits := appCfg.Compilation
	if trusted {
		limits = appCfg.Trusted
	}
	if p, ok := box.(interface{ BaseRef() *sandbox.Base }); ok {
		limits.Apply(p.BaseRef(), appCfg.Sandbox.MaxFileSize)
	}
	box.SetMultiprocess(multiproc)

	if putFile != "" {
		// Round-trip through the blob store so the check also covers the
		// storage collaborator, not just process launch.
		digest, err := putThroughStore(ctx, store, putFile)
		if err != nil {
			return err
		}
		name := filepath.Base(putFile)
		if err := box.CreateFileFromStorage(ctx, name, digest, true); err != nil {
			return fmt.Errorf("materialize %s failed: %w", name, err)
		}
		logger.Info(ctx, "file materialized", zap.String("name", name), zap.String("digest", digest))
	}

	argv, err := shlex.Split(command)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(argv) == 0 {
		return fmt.Errorf("command is empty")
	}

	ok, _, err := box.ExecuteWithoutStd(ctx, argv, true)
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}

	fmt.Printf("status:      %s\n", box.GetExitStatus())
	fmt.Printf("description: %s\n", box.HumanExitDescription())
	fmt.Printf("usage:       %s\n", sandbox.Stats(box))
	fmt.Printf("sandbox ok:  %v\n", ok)

	if stdoutFile != "" {
		text, err := box.GetFileText(stdoutFile, sandbox.DefaultReadLen)
		if err != nil {
			return fmt.Errorf("read %s failed: %w", stdoutFile, err)
		}
		fmt.Printf("---- %s ----\n%s\n", stdoutFile, text)
	}
	return nil
}

func buildSandbox(store storage.FileStore, cfg *config.AppConfig) (sandbox.Sandbox, error) {
	switch cfg.Sandbox.Backend {
	case "", "procbox":
		return sandbox.NewProcBox(store, "boxcheck", 0, cfg.Sandbox.ToProcBoxConfig())
	default:
		return nil, fmt.Errorf("unknown sandbox backend %q", cfg.Sandbox.Backend)
	}
}

func putThroughStore(ctx context.Context, store storage.FileStore, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s failed: %w", path, err)
	}
	defer file.Close()
	digest, err := store.PutFileFromReader(ctx, file, "boxcheck: "+filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("store %s failed: %w", path, err)
	}
	return digest, nil
}

func listLanguages(configPath string) error {
	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load app config failed: %w", err)
	}
	reg := language.DefaultRegistry()
	for _, spec := range appCfg.Languages {
		custom, err := language.NewCustom(spec)
		if err != nil {
			return fmt.Errorf("language %q: %w", spec.Name, err)
		}
		reg.Register(custom)
	}
	for _, name := range reg.Names() {
		lang, err := reg.Get(name)
		if err != nil {
			return err
		}
		fmt.Printf("%-24s sources=%v executable=%q\n",
			name, lang.SourceExtensions(), lang.ExecutableExtension())
	}
	return nil
}

func buildStore(cfg *config.AppConfig) (storage.FileStore, error) {
	var backend storage.FileStore
	var err error
	switch cfg.Storage.Backend {
	case "minio":
		backend, err = storage.NewMinIOStore(cfg.Storage.MinIO)
	default:
		backend, err = storage.NewLocalStore(cfg.Storage.LocalDir)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Cache.RootDir == "" {
		return backend, nil
	}
	return storage.NewCachingStore(backend, cfg.Storage.Cache.RootDir,
		cfg.Storage.Cache.TTL, cfg.Storage.Cache.MaxEntries, cfg.Storage.Cache.MaxBytes)
}
