// Command iptv-checker: verify IPTV subscriptions (run), or check / import / export separately.
//
//	run     Daemon: periodic check batches over every stored entry, plus /healthz and /metrics. For systemd.
//	check   One batch now (or a single entry with -id), print results
//	import  Add entries from a get.php link (-url), a bulk text file (-file), or a YAML file (-yaml)
//	export  Print shareable links for all entries (or one with -id)
//	list    Print stored entries with their last known status
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/account"
	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/checker"
	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/config"
	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/health"
	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/importer"
	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/store"
)

// daemonState backs the /healthz snapshot.
type daemonState struct {
	mu          sync.Mutex
	startedAt   time.Time
	entries     int
	lastBatchAt time.Time
}

func (d *daemonState) Health() health.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return health.Snapshot{
		Status:      "ok",
		Entries:     d.entries,
		LastBatchAt: d.lastBatchAt,
		Uptime:      time.Since(d.startedAt).Round(time.Second).String(),
	}
}

// runBatch checks every stored entry sequentially and persists each result.
func runBatch(ctx context.Context, cfg *config.Config, st *store.Store) error {
	accounts, err := st.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		log.Print("checker: no entries to check")
		return nil
	}
	health.BatchStarted(len(accounts))
	defer health.BatchFinished()

	byID := make(map[int64]account.Account, len(accounts))
	for _, acc := range accounts {
		byID[acc.ID] = acc
	}
	lastResult := time.Now()
	runner := &checker.Runner{
		Checker: checker.New(cfg),
		Delay:   cfg.RequestDelay,
		Callbacks: checker.Callbacks{
			Status: func(text string) { log.Printf("checker: %s", text) },
			Result: func(id int64, res account.CheckResult) {
				now := time.Now()
				health.RecordCheck(string(res.Status), now.Sub(lastResult))
				lastResult = now
				if err := st.ApplyResult(id, res, now); err != nil {
					log.Printf("checker: persist result for %q: %v", byID[id].Name, err)
				}
				log.Printf("checker: %s: %s - %s", byID[id].Name, res.Status, res.Message)
			},
		},
	}
	runner.Run(ctx, accounts)
	return nil
}

func addAccounts(st *store.Store, accounts []account.Account) int {
	added := 0
	for _, acc := range accounts {
		if acc.Category != "" {
			_ = st.AddCategory(acc.Category)
		}
		if _, err := st.Add(acc); err != nil {
			log.Printf("import: %q: %v", acc.Name, err)
			continue
		}
		added++
	}
	return added
}

func main() {
	_ = config.LoadEnvFile(".env")
	log.SetFlags(log.LstdFlags)
	log.SetPrefix("[iptv-checker] ")

	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	runAddr := runCmd.String("addr", "", "Health/metrics listen address (default: CHECKER_LISTEN_ADDR)")
	runOnce := runCmd.Bool("once", false, "Run a single batch and exit instead of looping")

	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
	checkID := checkCmd.Int64("id", 0, "Check only this entry")

	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importURL := importCmd.String("url", "", "Single get.php link to import")
	importFile := importCmd.String("file", "", "Bulk text file: get.php links, stalker strings, portal+MAC blocks")
	importYAML := importCmd.String("yaml", "", "Structured YAML import file")
	importCategory := importCmd.String("category", "Uncategorized", "Category for imported entries")

	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	exportID := exportCmd.Int64("id", 0, "Export only this entry")

	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <run|check|import|export|list> [flags]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  run     Daemon: periodic batches + /healthz + /metrics (for systemd)\n")
		fmt.Fprintf(os.Stderr, "  check   One batch now, or -id N for a single entry\n")
		fmt.Fprintf(os.Stderr, "  import  Add entries (-url link | -file bulk.txt | -yaml entries.yaml)\n")
		fmt.Fprintf(os.Stderr, "  export  Print shareable links\n")
		fmt.Fprintf(os.Stderr, "  list    Print stored entries\n")
		os.Exit(1)
	}

	cfg := config.Load()
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Printf("Open database: %v", err)
		os.Exit(1)
	}
	defer st.Close()

	switch os.Args[1] {
	case "run":
		_ = runCmd.Parse(os.Args[2:])
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		state := &daemonState{startedAt: time.Now()}
		addr := *runAddr
		if addr == "" {
			addr = cfg.ListenAddr
		}
		srv := &http.Server{Addr: addr, Handler: health.Handler(state)}
		go func() {
			log.Printf("health: listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("health: %v", err)
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()

		// SIGHUP triggers an immediate batch without waiting out the interval.
		sigHUP := make(chan os.Signal, 1)
		signal.Notify(sigHUP, syscall.SIGHUP)
		defer signal.Stop(sigHUP)

		ticker := time.NewTicker(cfg.CheckInterval)
		defer ticker.Stop()

		for {
			if accounts, err := st.List(); err == nil {
				state.mu.Lock()
				state.entries = len(accounts)
				state.mu.Unlock()
			}
			if err := runBatch(ctx, cfg, st); err != nil {
				log.Printf("Batch failed: %v", err)
			} else {
				state.mu.Lock()
				state.lastBatchAt = time.Now()
				state.mu.Unlock()
			}
			if *runOnce {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-sigHUP:
				log.Print("SIGHUP received - starting batch now")
			}
		}

	case "check":
		_ = checkCmd.Parse(os.Args[2:])
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if *checkID != 0 {
			acc, err := st.Get(*checkID)
			if err != nil {
				log.Printf("Check failed: %v", err)
				os.Exit(1)
			}
			res := checker.New(cfg).Check(ctx, acc)
			if err := st.ApplyResult(acc.ID, res, time.Now()); err != nil {
				log.Printf("Persist result: %v", err)
			}
			fmt.Printf("%s: %s - %s\n", acc.Name, res.Status, res.Message)
			return
		}
		if err := runBatch(ctx, cfg, st); err != nil {
			log.Printf("Check failed: %v", err)
			os.Exit(1)
		}

	case "import":
		_ = importCmd.Parse(os.Args[2:])
		switch {
		case *importURL != "":
			creds, err := importer.ParseGetPHPURL(*importURL)
			if err != nil {
				log.Printf("Import failed: %v", err)
				os.Exit(1)
			}
			host := "host"
			if u, err := url.Parse(creds.ServerBaseURL); err == nil && u.Hostname() != "" {
				host = u.Hostname()
			}
			acc := account.Account{
				Name:     host + "_" + creds.Username,
				Category: *importCategory,
				Type:     account.TypeXtream,
				Xtream:   creds,
			}
			if added := addAccounts(st, []account.Account{acc}); added == 1 {
				log.Printf("Imported %s", acc.Name)
			}

		case *importFile != "":
			f, err := os.Open(*importFile)
			if err != nil {
				log.Printf("Import failed: %v", err)
				os.Exit(1)
			}
			res, err := importer.ParseBulk(bufio.NewReader(f), *importCategory)
			f.Close()
			if err != nil {
				log.Printf("Import failed: %v", err)
				os.Exit(1)
			}
			added := addAccounts(st, res.Accounts)
			log.Printf("Imported %d entries, skipped %d", added, res.Skipped)

		case *importYAML != "":
			f, err := os.Open(*importYAML)
			if err != nil {
				log.Printf("Import failed: %v", err)
				os.Exit(1)
			}
			accounts, err := importer.ParseYAML(f)
			f.Close()
			if err != nil {
				log.Printf("Import failed: %v", err)
				os.Exit(1)
			}
			added := addAccounts(st, accounts)
			log.Printf("Imported %d entries", added)

		default:
			log.Print("Set one of -url, -file, -yaml")
			os.Exit(1)
		}

	case "export":
		_ = exportCmd.Parse(os.Args[2:])
		if *exportID != 0 {
			acc, err := st.Get(*exportID)
			if err != nil {
				log.Printf("Export failed: %v", err)
				os.Exit(1)
			}
			fmt.Println(importer.ExportLink(acc))
			return
		}
		accounts, err := st.List()
		if err != nil {
			log.Printf("Export failed: %v", err)
			os.Exit(1)
		}
		for _, acc := range accounts {
			fmt.Println(importer.ExportLink(acc))
		}

	case "list":
		_ = listCmd.Parse(os.Args[2:])
		accounts, err := st.List()
		if err != nil {
			log.Printf("List failed: %v", err)
			os.Exit(1)
		}
		for _, acc := range accounts {
			target := acc.Xtream.ServerBaseURL
			if acc.Type == account.TypeStalker {
				target = acc.Stalker.PortalURL + " " + acc.Stalker.MACAddress
			}
			frozen := ""
			if acc.Backoff.Frozen(time.Now()) {
				frozen = fmt.Sprintf("  [frozen until %s]",
					acc.Backoff.FrozenUntil.Local().Format("15:04:05"))
			}
			fmt.Printf("%4d  %-8s  %-30s  %s%s\n",
				acc.ID, acc.Type, acc.Name, strings.TrimSpace(target), frozen)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", os.Args[1])
		os.Exit(1)
	}
}
