package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"AndroidUISpy/mcp"
	"AndroidUISpy/pkg/types"

	"github.com/spf13/cobra"
)

var (
	locateReq   types.LocateRequest
	locateRoot  string
	locateTgt   string
	locateTree  string
	snapKind    string
	snapLimit   int
	snapMaxAge  time.Duration
	snapDevice  string
	noSnapshots bool
)

func registerCommands() {
	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List connected devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := app.GetDevices(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), devices)
		},
	}

	windowsCmd := &cobra.Command{
		Use:   "windows",
		Short: "List windows from dumpsys window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := app.WindowState(cmd.Context(), "", true)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), state)
		},
	}

	focusCmd := &cobra.Command{
		Use:   "focus",
		Short: "Show the focused window and input target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := app.WindowState(cmd.Context(), "", true)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"currentFocus": state.CurrentFocus,
				"inputTarget":  state.InputTarget,
			})
		},
	}

	activitiesCmd := &cobra.Command{
		Use:   "activities",
		Short: "List activities from dumpsys activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := app.ActivityList(cmd.Context(), "", true)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}

	processCmd := &cobra.Command{
		Use:   "process <window>",
		Short: "Resolve the process hosting a window (hashcode or title)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := app.WindowProcess(cmd.Context(), "", args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), proc)
		},
	}

	parseCmd := &cobra.Command{
		Use:   "parse <qpath>",
		Short: "Parse a QPath and print its canonical form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := (&App{}).ParseQPath(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}

	locateCmd := &cobra.Command{
		Use:   "locate <qpath>",
		Short: "Locate the control matching a QPath",
		Args:  cobra.ExactArgs(1),
		RunE:  runLocate,
	}
	locateCmd.Flags().StringVarP(&locateReq.Window, "window", "w", "", "window of the control tree (default: first)")
	locateCmd.Flags().StringVar(&locateRoot, "root", "", "hashcode (hex) to search from")
	locateCmd.Flags().StringVar(&locateTgt, "target", "", "hashcode (hex) of the expected control, disambiguates with Instance")
	locateCmd.Flags().StringVar(&locateTree, "tree", "", "read the control tree from a uiautomator XML or JSON file")
	locateCmd.Flags().BoolVar(&locateReq.Diagnose, "diagnose", false, "report the first locator that fails")

	genpathCmd := &cobra.Command{
		Use:   "genpath <hashcode>",
		Short: "Generate a unique QPath for a control",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := mcp.ParseHashcode(args[0])
			if err != nil {
				return err
			}
			if err := loadTreeFile(cmd.Context()); err != nil {
				return err
			}
			m, err := app.GenerateQPath(cmd.Context(), "", h)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}
	genpathCmd.Flags().StringVar(&locateTree, "tree", "", "read the control tree from a uiautomator XML or JSON file")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Report focus and activity changes; snapshots each change",
		Args:  cobra.NoArgs,
		RunE:  runWatch,
	}
	watchCmd.Flags().DurationVar(&flagInterval, "interval", 0, "poll interval (default: from settings)")
	watchCmd.Flags().BoolVar(&noSnapshots, "no-snapshots", false, "do not store snapshots")

	snapshotsCmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Manage stored dump snapshots",
	}
	snapListCmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.SnapshotStore()
			if err != nil {
				return err
			}
			list, err := store.List(snapDevice, snapKind, snapLimit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}
	snapListCmd.Flags().StringVar(&snapDevice, "for", "", "only snapshots of this source")
	snapListCmd.Flags().StringVar(&snapKind, "kind", "", "window, activity or ui")
	snapListCmd.Flags().IntVar(&snapLimit, "limit", 50, "maximum number of snapshots")

	snapShowCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print the raw dump of a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.SnapshotStore()
			if err != nil {
				return err
			}
			snap, err := store.Get(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), snap.Raw)
			return err
		},
	}

	snapPruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete snapshots older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.SnapshotStore()
			if err != nil {
				return err
			}
			n, err := store.Prune(snapMaxAge)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int64{"deleted": n})
		},
	}
	snapPruneCmd.Flags().DurationVar(&snapMaxAge, "older-than", 7*24*time.Hour, "maximum snapshot age")
	snapshotsCmd.AddCommand(snapListCmd, snapShowCmd, snapPruneCmd)

	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP protocol on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mcp.NewMCPServer(app).Start()
		},
	}

	rootCmd.AddCommand(devicesCmd, windowsCmd, focusCmd, activitiesCmd, processCmd,
		parseCmd, locateCmd, genpathCmd, watchCmd, snapshotsCmd, mcpCmd)
}

func loadTreeFile(ctx context.Context) error {
	if locateTree == "" {
		return nil
	}
	data, err := os.ReadFile(locateTree)
	if err != nil {
		return err
	}
	t, err := LoadControlTree(string(data), locateReq.Window)
	if err != nil {
		return fmt.Errorf("load %s: %w", locateTree, err)
	}
	s, err := app.Session(ctx, "")
	if err != nil {
		return err
	}
	s.Controls.SetControlTree(t)
	return nil
}

func runLocate(cmd *cobra.Command, args []string) error {
	req := locateReq
	req.QPath = args[0]
	var err error
	if req.Root, err = mcp.ParseHashcode(locateRoot); err != nil {
		return err
	}
	if req.Target, err = mcp.ParseHashcode(locateTgt); err != nil {
		return err
	}
	if err := loadTreeFile(cmd.Context()); err != nil {
		return err
	}
	m, err := app.LocateControl(cmd.Context(), "", req)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), m)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := app.Session(ctx, "")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if dir := app.Config().DumpDir; dir != "" {
		w := NewDumpWatcher(s, dir, func(file string) {
			fmt.Fprintf(out, "%s reloaded %s\n", time.Now().Format(time.TimeOnly), file)
		})
		if err := w.Start(); err != nil {
			return err
		}
		<-ctx.Done()
		w.Stop()
		return nil
	}

	var store *SnapshotStore
	if !noSnapshots {
		if store, err = app.SnapshotStore(); err != nil {
			return err
		}
	}
	app.RememberDevice(s.Source.ID())

	m := NewStateMonitor(s, app.Config().PollInterval, store, func(c StateChange) {
		ids := make([]string, len(c.Snapshots))
		for i, snap := range c.Snapshots {
			ids[i] = snap.ID
		}
		line := fmt.Sprintf("%s %s", c.Time.Format(time.TimeOnly), c)
		if len(ids) > 0 {
			line += " snapshots=" + strings.Join(ids, ",")
		}
		fmt.Fprintln(out, line)
	})
	if err := m.Start(ctx); err != nil {
		return err
	}
	m.Wait(ctx)
	m.Stop()
	return nil
}
