package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Renderer produces print output for one item from a master design file
// and the layer-name field map.
type Renderer interface {
	Render(ctx context.Context, master string, fields map[string]string, outDir string) error
}

// CommandRenderer runs an external program per item. The program receives
// the path of a JSON file as its last argument:
//
//	{"template": "<master>", "data": {...}, "output": "<outDir>"}
type CommandRenderer struct {
	Command string
	Args    []string
}

const maxCommandOutput = 500

// Render writes the payload, runs the command, and fails with the command
// output when it exits non-zero.
func (r CommandRenderer) Render(ctx context.Context, master string, fields map[string]string, outDir string) error {
	if r.Command == "" {
		return errors.New("render command is not configured")
	}
	if _, err := os.Stat(master); err != nil {
		return fmt.Errorf("master design: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	f, err := os.CreateTemp("", "autodesign-job-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	payload := struct {
		Template string            `json:"template"`
		Data     map[string]string `json:"data"`
		Output   string            `json:"output"`
	}{master, fields, outDir}
	if err := json.NewEncoder(f).Encode(payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	args := append(append([]string{}, r.Args...), f.Name())
	out, err := exec.CommandContext(ctx, r.Command, args...).CombinedOutput()
	if err != nil {
		msg := truncate(strings.TrimSpace(string(out)), maxCommandOutput)
		return fmt.Errorf("render %s: %w: %s", master, err, msg)
	}
	return nil
}
