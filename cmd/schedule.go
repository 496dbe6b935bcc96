package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/taskplan/app"
	"github.com/kilianp07/taskplan/config"
	"github.com/kilianp07/taskplan/connectors/remote"
	"github.com/kilianp07/taskplan/core/model"
	"github.com/kilianp07/taskplan/core/planner"
	"github.com/kilianp07/taskplan/infra/mqtt"
	"github.com/kilianp07/taskplan/pkg/export"
)

var (
	taskFile    string
	outFormat   string
	outFile     string
	remoteURL   string
	viaMQTT     bool
	horizonFlag int
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Schedule the tasks of a YAML or JSON file",
	Long: `Schedule reads a task file, runs one scheduling pass and prints the result.
The pass runs locally unless --remote or --mqtt selects a remote scheduler.`,
	RunE: runSchedule,
}

func init() {
	f := scheduleCmd.Flags()
	f.StringVarP(&taskFile, "file", "f", "", "task file (.yaml, .yml or .json), - for stdin as JSON")
	f.StringVar(&outFormat, "format", "table", "output format: "+strings.Join(export.Formats, "|"))
	f.StringVarP(&outFile, "out", "o", "", "write the output to this file instead of stdout")
	f.StringVar(&remoteURL, "remote", "", "base URL of a remote scheduler")
	f.BoolVar(&viaMQTT, "mqtt", false, "send the request through the configured MQTT broker")
	f.IntVar(&horizonFlag, "horizon", 0, "number of day slots (0 uses the configured horizon)")
	_ = scheduleCmd.MarkFlagRequired("file")
	scheduleCmd.MarkFlagsMutuallyExclusive("remote", "mqtt")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	req, err := readRequest(cmd.InOrStdin(), taskFile)
	if err != nil {
		return err
	}
	if horizonFlag != 0 {
		req.Horizon = horizonFlag
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	p, closeFn, err := selectPlanner(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := planner.WithSource(contextOf(cmd), "cli")
	resp, err := p.Plan(ctx, req)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return export.Write(w, outFormat, resp)
}

func selectPlanner(cfg *config.Config) (planner.Planner, func(), error) {
	switch {
	case remoteURL != "":
		rc := cfg.Remote
		rc.URL = remoteURL
		c, err := remote.New(rc)
		if err != nil {
			return nil, nil, fmt.Errorf("remote scheduler: %w", err)
		}
		return c, func() {}, nil
	case viaMQTT:
		r, err := mqtt.NewRequester(cfg.MQTT)
		if err != nil {
			return nil, nil, fmt.Errorf("mqtt requester: %w", err)
		}
		return r, r.Close, nil
	}
	p, store, err := app.NewPlanner(cfg)
	if err != nil {
		return nil, nil, err
	}
	return p, func() { _ = store.Close() }, nil
}

// readRequest decodes a task file. YAML files may also hold a bare task list.
func readRequest(stdin io.Reader, path string) (model.Request, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return model.Request{}, fmt.Errorf("read tasks: %w", err)
	}

	var req model.Request
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return req, fmt.Errorf("parse %s: %w", path, err)
		}
		if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
			err = node.Decode(&req.Tasks)
		} else {
			err = node.Decode(&req)
		}
	default:
		err = json.Unmarshal(data, &req)
	}
	if err != nil {
		return req, fmt.Errorf("parse %s: %w", path, err)
	}
	return req, nil
}
