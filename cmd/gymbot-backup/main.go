package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/meltforce/gymbot/internal/backup"
	"github.com/meltforce/gymbot/internal/config"
	"github.com/meltforce/gymbot/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	userID := flag.Int64("user", 0, "Telegram user ID to snapshot")
	out := flag.String("out", "", "output SQLite file (default gymbot-backup-<user>-<date>.db)")
	days := flag.Int("days", 0, "limit logs to the last N days (0 = everything)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("gymbot-backup", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *userID == 0 {
		fmt.Fprintf(os.Stderr, "Usage: gymbot-backup -user <telegram user ID> [-out FILE] [-days N]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := storage.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	since := time.Time{}
	if *days > 0 {
		since = time.Now().AddDate(0, 0, -*days)
	}

	path := *out
	if path == "" {
		path = fmt.Sprintf("gymbot-backup-%d-%s.db", *userID, time.Now().Format("2006-01-02"))
	}

	stats, err := backup.Run(ctx, db, *userID, since, path)
	if err != nil {
		log.Error("backup failed", "error", err)
		os.Exit(1)
	}
	log.Info("backup written", "path", path, "templates", stats.Templates, "logs", stats.Logs)
}
