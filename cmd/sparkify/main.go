// The sparkify command runs the full ETL: song-data phase, then log-data
// phase. It has no flags; an optional single argument overrides the config
// file path. Success exits 0, any failure in any stage exits 1.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/jalexspringer/sparkify-s3"
	"github.com/jalexspringer/sparkify-s3/entity"
	"github.com/jalexspringer/sparkify-s3/internal/pkg/session"
)

const defaultConfigPath = "sparkify.yaml"

type config struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`

	AWS struct {
		AccessKeyID     string `yaml:"access_key_id"`
		SecretAccessKey string `yaml:"secret_access_key"`
		Region          string `yaml:"region"`
	} `yaml:"aws"`

	OnKeyConflict   string `yaml:"on_key_conflict"`
	EnrichUserAgent bool   `yaml:"enrich_user_agent"`
	TempDir         string `yaml:"temp_dir"`

	Ops struct {
		Log        bool `yaml:"log"`
		Partitions int  `yaml:"partitions"`
	} `yaml:"ops"`
}

func loadConfig(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &config{}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Input == "" || cfg.Output == "" {
		return nil, fmt.Errorf("%s must set input and output roots", path)
	}
	return cfg, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sparkify: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := defaultConfigPath
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	notifyChan := make(entity.NotifyChan, 100)
	sess, err := session.New(session.Config{
		OutputRoot: cfg.Output,
		Credentials: session.Credentials{
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Region:          cfg.AWS.Region,
		},
		TempDir:    cfg.TempDir,
		Parallel:   cfg.Ops.Partitions,
		NotifyChan: notifyChan,
		Log:        cfg.Ops.Log,
	})
	if err != nil {
		return err
	}

	pipelineConfig := sparkify.NewConfig()
	pipelineConfig.Session = sess
	pipelineConfig.SongData = session.Join(cfg.Input, "song_data")
	pipelineConfig.LogData = session.Join(cfg.Input, "log_data")
	pipelineConfig.EnrichUserAgent = cfg.EnrichUserAgent
	pipelineConfig.NotifyChan = notifyChan
	pipelineConfig.Ops.Log = cfg.Ops.Log
	pipelineConfig.Ops.Partitions = cfg.Ops.Partitions
	if cfg.OnKeyConflict != "" {
		pipelineConfig.OnKeyConflict = sparkify.KeyConflictPolicy(cfg.OnKeyConflict)
	}

	pipeline, err := sparkify.New(pipelineConfig)
	if err != nil {
		return err
	}
	return pipeline.Run(ctx)
}
