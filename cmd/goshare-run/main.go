// Command goshare-run spawns a program inside a fresh set of Linux
// namespaces, the way faketree's main() drove its own reexec state
// machine, built here on top of the goshare package instead of inlining
// the clone/pivot/capability logic into the CLI itself.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/docker/docker/pkg/reexec"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/tailhook/goshare"
	"github.com/tailhook/goshare/internal/zombie"
)

var log = logrus.StandardLogger()

type runFlags struct {
	unshareNS   []string
	pivotRoot   string
	putOld      string
	unmount     bool
	chrootDir   string
	workDir     string
	uidMap      []string
	gidMap      []string
	keepCaps    []string
	deathSig    string
	allowDaemon bool
	subreap     bool
}

func main() {
	// goshare registers its own reexec target during package init; this
	// call must come before any flag parsing or logging setup, matching
	// the dispatch faketree.go performs at the very top of its own main.
	if reexec.Init() {
		return
	}

	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "goshare-run -- PROGRAM [ARGS...]",
		Short: "run a program inside fresh Linux namespaces",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			return run(flags, args)
		},
	}

	var pf *pflag.FlagSet = cmd.Flags()
	pf.StringSliceVar(&flags.unshareNS, "unshare", nil, "namespaces to unshare: mount,uts,ipc,user,pid,net")
	pf.StringVar(&flags.pivotRoot, "pivot-root", "", "new filesystem root")
	pf.StringVar(&flags.putOld, "put-old", "", "where to stash the old root under --pivot-root")
	pf.BoolVar(&flags.unmount, "unmount-old-root", false, "MNT_DETACH the old root after pivot_root")
	pf.StringVar(&flags.chrootDir, "chroot", "", "chroot directory, applied after --pivot-root if both are set")
	pf.StringVar(&flags.workDir, "workdir", "", "working directory inside the new root")
	pf.StringSliceVar(&flags.uidMap, "uid-map", nil, "inside:outside:count, repeatable")
	pf.StringSliceVar(&flags.gidMap, "gid-map", nil, "inside:outside:count, repeatable")
	pf.StringSliceVar(&flags.keepCaps, "keep-cap", nil, "capability to retain (repeatable), e.g. CAP_NET_BIND_SERVICE")
	pf.StringVar(&flags.deathSig, "death-signal", "SIGKILL", "signal delivered to the child if this process dies")
	pf.BoolVar(&flags.allowDaemon, "allow-daemonize", false, "let the child survive this process's death")
	pf.BoolVar(&flags.subreap, "subreap", false, "become a child subreaper and log reaped descendants")

	if err := cmd.Execute(); err != nil {
		log.WithError(err).Error("goshare-run failed")
		os.Exit(1)
	}
}

func run(flags *runFlags, args []string) error {
	if flags.subreap {
		if err := zombie.BecomeSubreaper(); err != nil {
			return fmt.Errorf("becoming subreaper: %w", err)
		}
		go zombie.New(nil, log).Run()
	}

	c := goshare.New(args[0]).Arg(args[1:]...)

	namespaces, err := parseNamespaces(flags.unshareNS)
	if err != nil {
		return err
	}
	if len(namespaces) > 0 {
		c.Unshare(namespaces...)
	}

	if flags.pivotRoot != "" {
		if flags.putOld == "" {
			return fmt.Errorf("--put-old is required with --pivot-root")
		}
		c.PivotRoot(flags.pivotRoot, flags.putOld, flags.unmount)
	}
	if flags.chrootDir != "" {
		c.ChrootDir(flags.chrootDir)
	}
	if flags.workDir != "" {
		c.WorkDir(flags.workDir)
	}

	uidMap, err := parseIDMaps(flags.uidMap)
	if err != nil {
		return fmt.Errorf("--uid-map: %w", err)
	}
	gidMap, err := parseIDMaps(flags.gidMap)
	if err != nil {
		return fmt.Errorf("--gid-map: %w", err)
	}
	if len(uidMap) > 0 || len(gidMap) > 0 {
		c.SetIDMaps(uidMap, gidMap)
	}

	if len(flags.keepCaps) > 0 {
		if _, err := c.WithCapabilityNames(flags.keepCaps...); err != nil {
			return err
		}
	}

	if flags.allowDaemon {
		c.AllowDaemonize()
	} else if sig, err := parseSignal(flags.deathSig); err == nil {
		c.SetParentDeathSignal(sig)
	} else {
		return err
	}

	c.Stdin(goshare.StdioInherit)
	c.Stdout(goshare.StdioInherit)
	c.Stderr(goshare.StdioInherit)

	status, err := c.Status()
	if err != nil {
		return err
	}
	log.WithField("status", status.String()).Debug("child exited")
	if !status.Success() {
		os.Exit(status.Code)
	}
	return nil
}

func parseNamespaces(names []string) ([]goshare.Namespace, error) {
	out := make([]goshare.Namespace, 0, len(names))
	table := map[string]goshare.Namespace{
		"mount": goshare.Mount,
		"uts":   goshare.UTS,
		"ipc":   goshare.IPC,
		"user":  goshare.User,
		"pid":   goshare.PID,
		"net":   goshare.Net,
	}
	for _, name := range names {
		ns, ok := table[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown namespace %q", name)
		}
		out = append(out, ns)
	}
	return out, nil
}

func parseIDMaps(specs []string) ([]goshare.IDMap, error) {
	out := make([]goshare.IDMap, 0, len(specs))
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("expected inside:outside:count, got %q", spec)
		}
		inside, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			return nil, err
		}
		outside, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return nil, err
		}
		count, err := strconv.ParseUint(parts[2], 10, 32)
		if err != nil {
			return nil, err
		}
		out = append(out, goshare.IDMap{InsideID: uint32(inside), OutsideID: uint32(outside), Count: uint32(count)})
	}
	return out, nil
}

func parseSignal(name string) (unix.Signal, error) {
	table := map[string]unix.Signal{
		"SIGKILL": unix.SIGKILL,
		"SIGTERM": unix.SIGTERM,
		"SIGINT":  unix.SIGINT,
		"SIGHUP":  unix.SIGHUP,
	}
	sig, ok := table[strings.ToUpper(name)]
	if !ok {
		return 0, fmt.Errorf("unknown signal %q", name)
	}
	return sig, nil
}
