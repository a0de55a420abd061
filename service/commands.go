package service

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"postvote/app/config"
	"postvote/app/repositories"
	"postvote/app/repositories/sqlstore"
)

// Commands runs the `db` maintenance subcommands.
type Commands struct {
	Config    *config.Config
	Logger    *slog.Logger
	In        io.Reader
	Out       io.Writer
	BackupDir string
}

// NewCommands returns Commands talking to the terminal.
func NewCommands(cfg *config.Config, log *slog.Logger) *Commands {
	return &Commands{
		Config:    cfg,
		Logger:    log,
		In:        os.Stdin,
		Out:       os.Stdout,
		BackupDir: filepath.Join("data", "backups"),
	}
}

// HandleCommand handles db subcommands and returns an exit code.
func (c *Commands) HandleCommand(args []string) int {
	if len(args) < 1 {
		c.printHelp()
		return 1
	}

	switch args[0] {
	case "init":
		return c.initDb()
	case "clean":
		return c.clean()
	case "backup":
		return c.backup()
	case "restore":
		if len(args) < 2 {
			fmt.Fprintln(c.Out, "Error: backup file path required for restore")
			return 1
		}
		return c.restore(args[1])
	case "help":
		c.printHelp()
		return 0
	default:
		fmt.Fprintf(c.Out, "Unknown db command: %s\n\n", args[0])
		c.printHelp()
		return 1
	}
}

func (c *Commands) printHelp() {
	fmt.Fprintln(c.Out, `Usage: postvote db <command>

Commands:
  init              Create the database and its schema
  clean             Delete every post, vote and account
  backup            Write a backup of the badger database to data/backups
  restore <file>    Restore the badger database from a backup
  help              Display this help message`)
}

func (c *Commands) confirm(question string) bool {
	fmt.Fprintf(c.Out, "%s [y/N] ", question)
	line, _ := bufio.NewReader(c.In).ReadString('\n')
	answer := strings.TrimSpace(line)
	return answer == "y" || answer == "Y"
}

func (c *Commands) badgerOnly(action string) bool {
	if c.Config.StoreDriver == config.DriverBadger {
		return true
	}
	fmt.Fprintf(c.Out, "%s is only supported for the badger driver; use your database's own tooling for %s\n",
		action, c.Config.StoreDriver)
	return false
}

func (c *Commands) badgerExists() bool {
	_, err := os.Stat(c.Config.BadgerPath)
	return err == nil
}

// initDb creates the database; the relational drivers also migrate the
// schema on open.
func (c *Commands) initDb() int {
	if c.Config.StoreDriver == config.DriverBadger && c.badgerExists() {
		fmt.Fprintln(c.Out, "Database already exists. Use 'clean' first if you want to reinitialize.")
		return 0
	}
	if c.Config.StoreDriver == config.DriverBadger {
		if err := os.MkdirAll(c.Config.BadgerPath, 0o755); err != nil {
			fmt.Fprintf(c.Out, "Failed to create database directory: %v\n", err)
			return 1
		}
	}

	store, err := OpenStore(c.Config, c.Logger)
	if err != nil {
		fmt.Fprintf(c.Out, "Failed to initialize database: %v\n", err)
		return 1
	}
	if err := store.Close(); err != nil {
		fmt.Fprintf(c.Out, "Failed to close database: %v\n", err)
		return 1
	}
	fmt.Fprintln(c.Out, "Database initialized successfully")
	return 0
}

// clean deletes all data after confirmation.
func (c *Commands) clean() int {
	if c.Config.StoreDriver == config.DriverBadger && !c.badgerExists() {
		fmt.Fprintln(c.Out, "Database is already clean (does not exist)")
		return 0
	}
	if !c.confirm("Are you sure you want to clean the database? This cannot be undone.") {
		fmt.Fprintln(c.Out, "Operation cancelled")
		return 1
	}

	var err error
	switch c.Config.StoreDriver {
	case config.DriverBadger:
		err = os.RemoveAll(c.Config.BadgerPath)
	default:
		var store *sqlstore.Store
		store, err = sqlstore.Open(c.Config.StoreDriver, c.Config.DatabaseURL, c.Logger)
		if err == nil {
			err = store.Reset()
			store.Close()
		}
	}
	if err != nil {
		fmt.Fprintf(c.Out, "Failed to clean database: %v\n", err)
		return 1
	}
	fmt.Fprintln(c.Out, "Database cleaned successfully")
	return 0
}

// backup writes a full Badger backup to BackupDir.
func (c *Commands) backup() int {
	if !c.badgerOnly("backup") {
		return 1
	}
	if !c.badgerExists() {
		fmt.Fprintln(c.Out, "No database exists to backup")
		return 1
	}
	if err := os.MkdirAll(c.BackupDir, 0o755); err != nil {
		fmt.Fprintf(c.Out, "Failed to create backup directory: %v\n", err)
		return 1
	}

	repo, err := repositories.NewRepository(c.Config.BadgerPath)
	if err != nil {
		fmt.Fprintf(c.Out, "Failed to open database: %v\n", err)
		return 1
	}
	defer repo.Close()

	backupFile := filepath.Join(c.BackupDir, fmt.Sprintf("backup_%d.db", time.Now().Unix()))
	f, err := os.Create(backupFile)
	if err != nil {
		fmt.Fprintf(c.Out, "Failed to create backup file: %v\n", err)
		return 1
	}
	defer f.Close()

	if err := repo.Backup(f); err != nil {
		fmt.Fprintf(c.Out, "Failed to backup database: %v\n", err)
		return 1
	}
	fmt.Fprintf(c.Out, "Database backed up successfully to %s\n", backupFile)
	return 0
}

// restore replaces the Badger database with the contents of backupFile.
func (c *Commands) restore(backupFile string) int {
	if !c.badgerOnly("restore") {
		return 1
	}
	fi, err := os.Stat(backupFile)
	if err != nil {
		fmt.Fprintf(c.Out, "Backup file does not exist: %s\n", backupFile)
		return 1
	}
	if fi.Size() == 0 {
		fmt.Fprintf(c.Out, "Backup file is empty: %s\n", backupFile)
		return 1
	}

	if c.badgerExists() {
		if !c.confirm("Existing database found. Do you want to replace it?") {
			fmt.Fprintln(c.Out, "Operation cancelled")
			return 1
		}
		if err := os.RemoveAll(c.Config.BadgerPath); err != nil {
			fmt.Fprintf(c.Out, "Failed to remove existing database: %v\n", err)
			return 1
		}
	}

	f, err := os.Open(backupFile)
	if err != nil {
		fmt.Fprintf(c.Out, "Failed to open backup file: %v\n", err)
		return 1
	}
	defer f.Close()

	repo, err := repositories.NewRepository(c.Config.BadgerPath)
	if err != nil {
		fmt.Fprintf(c.Out, "Failed to open database: %v\n", err)
		return 1
	}
	defer repo.Close()

	if err := repo.Load(f); err != nil {
		fmt.Fprintf(c.Out, "Failed to restore database: %v\n", err)
		return 1
	}
	fmt.Fprintln(c.Out, "Database restored successfully")
	return 0
}
