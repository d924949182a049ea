// krustyhostd is the print-host daemon: it loads motion configuration,
// wires the G-code parser, print-job manager, motion planner and
// executor together, watches a spool directory for new jobs, and
// serves the HTTP control and job-queue surfaces. Its subcommand
// dispatch and config-file handling follow the same run/help/mkconf
// pattern the reference multi-device server uses.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/theckman/yacspin"
	yml "gopkg.in/yaml.v2"

	"github.com/krustylabs/krusty-host/executor"
	"github.com/krustylabs/krusty-host/gcode"
	"github.com/krustylabs/krusty-host/job"
	"github.com/krustylabs/krusty-host/kerrors"
	"github.com/krustylabs/krusty-host/kinematics"
	"github.com/krustylabs/krusty-host/mathx"
	"github.com/krustylabs/krusty-host/mcu"
	"github.com/krustylabs/krusty-host/motionconfig"
	"github.com/krustylabs/krusty-host/planner"
	"github.com/krustylabs/krusty-host/server"
	"github.com/krustylabs/krusty-host/watcher"
)

var (
	// Version is injected via ldflags at build time.
	Version = "dev"

	// ConfigFileName is the on-disk config krustyhostd loads from the
	// working directory, mirroring the reference server's convention.
	ConfigFileName = "krustyhostd.yml"

	// Addr is where the HTTP control and job surfaces listen.
	Addr = ":8080"

	// SpoolDir is watched for newly dropped .gcode files.
	SpoolDir = "./spool"

	// SerialAddr is the MCU link's address. mcu.Link dials it over TCP
	// as host:port; a serial device path is not dialed by the Link.
	SerialAddr = "/dev/ttyACM0"
)

func root() {
	fmt.Println(`krustyhostd drives a 3D printer's motion pipeline: G-code ingestion,
print-job management, motion planning and shaped, rate-limited execution.

Usage:
	krustyhostd <command>

Commands:
	run
	help
	mkconf
	conf
	version`)
}

func help() {
	fmt.Println(`krustyhostd is configured via krustyhostd.yml in the working directory.
Keys absent from the file fall back to built-in defaults; mkconf writes
those defaults out as a starting point. See motionconfig.Config for the
full key reference.`)
}

func mkconf() error {
	cfg := motionconfig.Default()
	f, err := os.Create(ConfigFileName)
	if err != nil {
		return err
	}
	defer f.Close()
	return yml.NewEncoder(f).Encode(cfg)
}

func printconf() error {
	cfg, err := motionconfig.Load(ConfigFileName)
	if err != nil {
		return err
	}
	return yml.NewEncoder(os.Stdout).Encode(cfg)
}

func pversion() {
	fmt.Printf("krustyhostd version %v\n", Version)
}

// run wires every module together and blocks serving HTTP until the
// process is killed.
func run() error {
	spinner, spinErr := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " loading configuration",
		SuffixAutoColon: true,
	})
	if spinErr == nil {
		spinner.Start()
	}

	cfg, err := motionconfig.Load(ConfigFileName)
	if err != nil {
		if spinErr == nil {
			spinner.StopFailMessage(err.Error())
			spinner.StopFail()
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		if spinErr == nil {
			spinner.StopFailMessage(err.Error())
			spinner.StopFail()
		}
		return err
	}
	if spinErr == nil {
		spinner.StopMessage("configuration loaded")
		spinner.Stop()
	}

	start := mathx.Position{}
	plan := planner.New(cfg.PlannerConfig(), start)
	plan.Start()

	limits := kinematics.AxisLimits{
		{Min: -10000, Max: 10000},
		{Min: -10000, Max: 10000},
		{Min: 0, Max: 1000},
	}
	model := kinematics.NewModel(cfg.KinematicsKind(), limits)

	ex := executor.New(plan, model)
	ex.SetShaperBank(cfg.ShaperBank())

	link := mcu.NewLink(SerialAddr, 500*time.Millisecond)
	defer link.Close()
	ex.SetSink(link)

	assembler := newMoveAssembler(start)
	jobMgr := job.NewManager(func(cmd gcode.OwnedCommand) error {
		target, feedrate, kind, ok := assembler.Feed(cmd)
		if !ok {
			return nil
		}
		return plan.PlanMove(target, feedrate, kind)
	})

	parserCfg := gcode.DefaultParserConfig()
	table := gcode.NewMacroTable(parserCfg)
	expander := gcode.NewMacroExpander(table)

	if err := os.MkdirAll(SpoolDir, 0o755); err != nil {
		return err
	}
	w, err := watcher.New(SpoolDir, jobMgr, expander)
	if err != nil {
		return err
	}
	defer w.Close()
	stop := make(chan struct{})
	go w.Run(stop)
	defer close(stop)

	go runExecutorLoop(ex, stop)
	go runJobDrainLoop(jobMgr, assembler, plan, stop)

	controlSrv := server.NewControlServer(plan, jobMgr)
	jobSrv := server.NewJobServer(jobMgr, expander)
	axisSrv := server.NewAxisServer(link, limits)

	mux := http.NewServeMux()
	mux.Handle("/", controlSrv.Router())
	mux.Handle("/jobs", jobSrv.Mux())
	mux.Handle("/jobs/", jobSrv.Mux())
	mux.Handle("/axis/", axisSrv.Router())

	color.Green("krustyhostd ready, serving %s (spool: %s)", Addr, SpoolDir)
	return http.ListenAndServe(Addr, mux)
}

func runExecutorLoop(ex *executor.Executor, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if err := ex.Update(now); err != nil {
				log.Printf("krustyhostd: executor tick: %v", err)
			}
		}
	}
}

// runJobDrainLoop feeds the head job's commands into the manager's
// sender at a modest cadence; the planner's own lookahead buffer is
// what actually paces motion, so this loop only needs to keep it fed.
// It flushes the move assembler's in-progress move after each drain
// pass, since the last line of a file never arrives followed by
// another G word to trigger the assembler's normal flush-on-next-move
// path.
func runJobDrainLoop(mgr *job.Manager, assembler *moveAssembler, plan *planner.Planner, stop <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := mgr.ProcessCurrent(); err != nil {
				if !kerrors.IsNoJob(err) && !kerrors.IsInvalidTransition(err) {
					log.Printf("krustyhostd: job drain: %v", err)
				}
				continue
			}
			if target, feedrate, kind, ok := assembler.Flush(); ok {
				if err := plan.PlanMove(target, feedrate, kind); err != nil {
					log.Printf("krustyhostd: flushed move: %v", err)
				}
			}
		}
	}
}

func setupconfig() {
	if _, err := os.Stat(ConfigFileName); err != nil {
		if !strings.Contains(strings.ToLower(err.Error()), "no such") {
			log.Fatalf("error checking config: %v", err)
		}
	}
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd := strings.ToLower(args[1])
	switch cmd {
	case "help":
		help()
	case "mkconf":
		if err := mkconf(); err != nil {
			log.Fatal(err)
		}
	case "conf":
		if err := printconf(); err != nil {
			log.Fatal(err)
		}
	case "run":
		if err := run(); err != nil {
			log.Fatal(err)
		}
	case "version":
		pversion()
	default:
		log.Fatal("unknown command")
	}
}
