package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

type Application struct {
	Host         string       `koanf:"host"`
	Port         int          `koanf:"port"`
	Database     Database     `koanf:"db"`
	Timesheet    Timesheet    `koanf:"timesheet"`
	Notification Notification `koanf:"notification"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

// Timesheet holds the business policy knobs of the time-entry validator.
type Timesheet struct {
	MaxDailyHours int `koanf:"maxdailyhours"`
}

type Notification struct {
	QueueSize int `koanf:"queuesize"`
}

func defaults() Application {
	return Application{
		Host: "http://localhost:8181",
		Port: 8181,
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "hourline",
			Pass:   "",
			Name:   "hourline",
			Schema: "hourline",
		},
		Timesheet: Timesheet{
			MaxDailyHours: 10,
		},
		Notification: Notification{
			QueueSize: 256,
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: "HOURLINE_",
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "HOURLINE_")), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}
	if app.Timesheet.MaxDailyHours <= 0 {
		log.Warnf("invalid timesheet.maxdailyhours %d, falling back to 10", app.Timesheet.MaxDailyHours)
		app.Timesheet.MaxDailyHours = 10
	}

	return app, nil
}
