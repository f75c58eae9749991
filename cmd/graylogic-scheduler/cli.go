package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/nerrad567/gray-logic-scheduler/internal/device"
	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/logging"
)

// withCore loads the config, opens the store and runs fn against the engine.
// CLI commands log at warn level so their output stays readable.
func withCore(ctx context.Context, configPath string, fn func(c *core) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logCfg := cfg.Logging
	logCfg.Level = "warn"
	logCfg.Output = "stderr"
	log := logging.New(logCfg, version)

	c, err := openCore(ctx, cfg, log, nil, nil)
	if err != nil {
		return err
	}
	defer c.db.Close()

	return fn(c)
}

// listDevices prints the configured catalog. This is the state a fresh
// service starts with; live state is served by GET /api/v1/devices.
func listDevices(ctx context.Context, configPath string, out io.Writer) error {
	return withCore(ctx, configPath, func(c *core) error {
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSTATUS\tTEMPERATURE")
		for _, d := range c.registry.List() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Type, d.Status, formatTemperature(d))
		}
		return tw.Flush()
	})
}

func formatTemperature(d device.Device) string {
	if d.Temperature == nil {
		return "-"
	}
	return fmt.Sprintf("%d°C", *d.Temperature)
}

// listSchedules prints pending entries in execution order.
func listSchedules(ctx context.Context, configPath string, out io.Writer) error {
	return withCore(ctx, configPath, func(c *core) error {
		pending, err := c.engine.ListPending(ctx)
		if err != nil {
			return fmt.Errorf("listing schedules: %w", err)
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tDUE\tDEVICE\tACTION\tVALUE")
		for _, p := range pending {
			value := "-"
			if p.Value != nil {
				value = *p.Value
			}
			fmt.Fprintf(tw, "%d\t%s\t%s (%s)\t%s\t%s\n", p.ID, p.DueAt, p.DeviceName, p.DeviceID, p.Action, value)
		}
		return tw.Flush()
	})
}

// cancelSchedule deletes an entry. A running service sees the deletion on
// its next cycle.
func cancelSchedule(ctx context.Context, configPath string, id int64, out io.Writer) error {
	return withCore(ctx, configPath, func(c *core) error {
		if err := c.engine.Cancel(ctx, id); err != nil {
			return fmt.Errorf("cancelling schedule: %w", err)
		}
		_, err := fmt.Fprintf(out, "Task %d deleted.\n", id)
		return err
	})
}
