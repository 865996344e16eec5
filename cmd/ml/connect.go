package main

import (
	"fmt"
	"log"
	"os"

	"github.com/zulandar/motorlot/internal/config"
	"github.com/zulandar/motorlot/internal/db"
	"github.com/zulandar/motorlot/internal/identity"
	"github.com/zulandar/motorlot/internal/notify"
	"github.com/zulandar/motorlot/internal/notify/discord"
	"github.com/zulandar/motorlot/internal/notify/slack"
	"github.com/zulandar/motorlot/internal/workflow"
	"gorm.io/gorm"
)

const defaultConfigPath = "motorlot.yaml"

// connectFromConfig loads config and returns a GORM DB connection for
// the configured driver.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := openDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DB.Driver == "sqlite" {
		gormDB, err := db.ConnectSQLite(cfg.DB.Path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.DB.Path, err)
		}
		return gormDB, nil
	}
	gormDB, err := db.Connect(cfg.DB.User, cfg.DB.Host, cfg.DB.Port, cfg.DB.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.DB.Database, err)
	}
	return gormDB, nil
}

// buildNotifier assembles the configured delivery fan-out. With nothing
// configured, events go to the process log.
func buildNotifier(cfg *config.Config) notify.Notifier {
	var sinks notify.Multi
	if cfg.Notify.Command != "" {
		sinks = append(sinks, notify.Command{Template: cfg.Notify.Command})
	}
	if cfg.Notify.Slack.BotToken != "" {
		n, err := slack.New(slack.Opts{BotToken: cfg.Notify.Slack.BotToken, ChannelID: cfg.Notify.Slack.Channel})
		if err != nil {
			log.Printf("notify: slack disabled: %v", err)
		} else {
			sinks = append(sinks, n)
		}
	}
	if cfg.Notify.Discord.BotToken != "" {
		n, err := discord.New(discord.Opts{BotToken: cfg.Notify.Discord.BotToken, ChannelID: cfg.Notify.Discord.Channel})
		if err != nil {
			log.Printf("notify: discord disabled: %v", err)
		} else {
			sinks = append(sinks, n)
		}
	}
	if len(sinks) == 0 {
		return notify.Log{}
	}
	return sinks
}

// orchestratorFromConfig wires the full stack behind one handle.
func orchestratorFromConfig(configPath string) (*config.Config, *gorm.DB, *workflow.Orchestrator, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	o := workflow.New(gormDB, workflow.Opts{
		Notifier:       buildNotifier(cfg),
		LaborRate:      cfg.LaborRateDecimal(),
		StorageRetries: cfg.StorageRetries,
	})
	return cfg, gormDB, o, nil
}

// currentUser resolves who gets attributed, from --by or the OS user.
func currentUser(by string) identity.User {
	if by == "" {
		by = os.Getenv("USER")
	}
	if by == "" {
		by = "unknown"
	}
	return identity.User{ID: by, Name: by}
}
