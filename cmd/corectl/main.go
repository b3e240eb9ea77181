// Command corectl is the administrative CLI over CoreServices: store
// stats, manual snapshots, rename history inspection, and orphan cleanup.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/mecondev/oncutf-sub007/internal/config"
	"github.com/mecondev/oncutf-sub007/internal/core"
)

func main() {
	app := &cli.App{
		Name:  "corectl",
		Usage: "administrative CLI for the oncutf persistent core",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file (defaults built in if omitted)",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "override the configured store path",
			},
		},
		Commands: []*cli.Command{
			statsCommand,
			snapshotCommand,
			historyCommand,
			cleanupCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openServices(c *cli.Context) (*core.Services, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if store := c.String("store"); store != "" {
		cfg.StorePath = store
	}
	return core.New(cfg, zap.NewNop())
}

var statsCommand = &cli.Command{
	Name:  "stats",
	Usage: "print row counts from the persistent store",
	Action: func(c *cli.Context) error {
		svc, err := openServices(c)
		if err != nil {
			return err
		}
		defer svc.Close(context.Background())

		stats, err := svc.Store.Stats(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("paths:          %d\n", stats.Paths)
		fmt.Printf("metadata:       %d\n", stats.Metadata)
		fmt.Printf("hashes:         %d\n", stats.Hashes)
		fmt.Printf("rename entries: %d\n", stats.RenameEntries)
		return nil
	},
}

var snapshotCommand = &cli.Command{
	Name:  "snapshot",
	Usage: "manage database backups",
	Subcommands: []*cli.Command{
		{
			Name:  "create",
			Usage: "take an immediate backup",
			Action: func(c *cli.Context) error {
				svc, err := openServices(c)
				if err != nil {
					return err
				}
				defer svc.Close(context.Background())

				path, err := svc.Snapshot.Create(context.Background())
				if err != nil {
					return err
				}
				fmt.Printf("backup written: %s\n", path)
				return nil
			},
		},
		{
			Name:  "list",
			Usage: "list existing backups, newest first",
			Action: func(c *cli.Context) error {
				svc, err := openServices(c)
				if err != nil {
					return err
				}
				defer svc.Close(context.Background())

				backups, err := svc.Snapshot.ListBackups()
				if err != nil {
					return err
				}
				for _, b := range backups {
					fmt.Printf("%s  %s\n", b.CreatedAt.Format("2006-01-02 15:04:05"), b.Path)
				}
				return nil
			},
		},
		{
			Name:  "status",
			Usage: "show snapshot configuration and last-run status",
			Action: func(c *cli.Context) error {
				svc, err := openServices(c)
				if err != nil {
					return err
				}
				defer svc.Close(context.Background())

				status := svc.Snapshot.Status()
				fmt.Printf("retained count:   %d\n", status.Count)
				fmt.Printf("interval:         %s\n", status.Interval)
				fmt.Printf("periodic enabled: %v\n", status.PeriodicEnabled)
				fmt.Printf("last backup:      %s\n", status.LastBackup)
				if status.LastError != "" {
					fmt.Printf("last error:       %s\n", status.LastError)
				}
				return nil
			},
		},
	},
}

var historyCommand = &cli.Command{
	Name:  "history",
	Usage: "inspect and undo/redo rename batches",
	Subcommands: []*cli.Command{
		{
			Name:  "list",
			Usage: "show recent rename batches",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "limit", Value: 20},
			},
			Action: func(c *cli.Context) error {
				svc, err := openServices(c)
				if err != nil {
					return err
				}
				defer svc.Close(context.Background())

				ops, err := svc.History.RecentOperations(context.Background(), c.Int("limit"))
				if err != nil {
					return err
				}
				for _, op := range ops {
					fmt.Printf("%s  %-8s %3d files  %s\n", op.OperationTime.Format("2006-01-02 15:04:05"), op.OperationKind, op.FileCount, op.OperationID)
				}
				return nil
			},
		},
		{
			Name:  "undo",
			Usage: "undo the most recent batch",
			Action: func(c *cli.Context) error {
				svc, err := openServices(c)
				if err != nil {
					return err
				}
				defer svc.Close(context.Background())

				id, message, _, err := svc.History.UndoLatest(context.Background())
				if err != nil {
					return err
				}
				fmt.Printf("%s (undone as operation %s)\n", message, id)
				return nil
			},
		},
		{
			Name:  "redo",
			Usage: "redo the most recently undone batch",
			Action: func(c *cli.Context) error {
				svc, err := openServices(c)
				if err != nil {
					return err
				}
				defer svc.Close(context.Background())

				ok, message, _ := svc.History.Redo(context.Background())
				if !ok {
					return fmt.Errorf("redo: %s", message)
				}
				fmt.Println(message)
				return nil
			},
		},
	},
}

var cleanupCommand = &cli.Command{
	Name:  "cleanup",
	Usage: "remove path records whose backing file no longer exists",
	Action: func(c *cli.Context) error {
		svc, err := openServices(c)
		if err != nil {
			return err
		}
		defer svc.Close(context.Background())

		n, err := svc.History.CleanupOld(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("removed %d orphaned path records\n", n)
		return nil
	},
}
