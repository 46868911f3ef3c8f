package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/cwriter"

	"github.com/autotap/autotap/cmd/common"
	"github.com/autotap/autotap/internal/calibrate"
	"github.com/autotap/autotap/internal/config"
	hist "github.com/autotap/autotap/internal/history"
	"github.com/autotap/autotap/internal/rt"
	"github.com/autotap/autotap/internal/scheduler"
	"github.com/autotap/autotap/internal/script"
	"github.com/autotap/autotap/internal/server"
	"github.com/autotap/autotap/pkg/chart"
	"github.com/autotap/autotap/pkg/logger"
	"github.com/autotap/autotap/pkg/source"
	"github.com/autotap/autotap/pkg/timeline"
	"github.com/autotap/autotap/pkg/token"
)

var (
	chartRef    string
	earliestMS  int64
	dryRun      bool
	scriptPath  string
	stepDur     time.Duration
	settleDur   time.Duration
	noAckTap    bool
	rpcListen   string
	noRPC       bool
	noHistory   bool
	transportOf string
	logFile     string

	stderr io.Writer = os.Stderr

	playFlags = []cli.Flag{
		configFlag,
		cli.StringFlag{
			Name:        "chart, c",
			Usage:       "derive the base delay from this chart (local path or sftp/ftp URL)",
			Destination: &chartRef,
		},
		cli.Int64Flag{
			Name:        "earliest, e",
			Usage:       "earliest note instant in ms, used when no chart is given",
			Value:       -1,
			Destination: &earliestMS,
		},
		cli.BoolFlag{
			Name:        "dry-run, n",
			Usage:       "log primitives instead of sending them to a device",
			Destination: &dryRun,
		},
		cli.StringFlag{
			Name:        "script, s",
			Usage:       "transform the timeline with this JavaScript file before playing",
			Destination: &scriptPath,
		},
		cli.DurationFlag{
			Name:        "step",
			Usage:       "calibration step (default: from config, 10ms)",
			Destination: &stepDur,
		},
		cli.DurationFlag{
			Name:        "settle",
			Usage:       "pause between the start tap and the first instant (default: from config, 6s)",
			Destination: &settleDur,
		},
		cli.BoolFlag{
			Name:        "no-ack-tap",
			Usage:       "do not tap the screen centre before playing",
			Destination: &noAckTap,
		},
		cli.StringFlag{
			Name:        "transport, t",
			Usage:       "override the transport kind (adb, ssh, wsbridge, serial, recorder)",
			Destination: &transportOf,
		},
		cli.StringFlag{
			Name:        "listen",
			Usage:       "serve remote calibration on this host:port",
			Destination: &rpcListen,
		},
		cli.BoolFlag{
			Name:        "no-rpc",
			Usage:       "do not serve the local control endpoint",
			Destination: &noRPC,
		},
		cli.StringFlag{
			Name:        "log-file",
			Usage:       "append the session log to this file as well",
			Destination: &logFile,
		},
		cli.BoolFlag{
			Name:        "no-history",
			Usage:       "do not record the session",
			Destination: &noHistory,
		},
	}
)

type playOptions struct {
	chart     string
	earliest  int64
	dryRun    bool
	noRPC     bool
	noHistory bool
}

func play(ctx *cli.Context) error {
	ref := ctx.Args().First()
	if ref == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	cfg, path, err := loadConfig()
	if err != nil {
		common.PrintRuntimeErr(ctx, "play", "load_config", err)
		return nil
	}
	applyPlayFlags(ctx, cfg)
	if err := cfg.Validate(); err != nil {
		return common.PrintErrWithCmdHelp(ctx, err)
	}
	if ref == "" {
		ref = cfg.Timeline
	}
	if ref == "" {
		if ctx.Command.Name == "" {
			return common.Help(ctx)
		}
		return common.PrintErrWithCmdHelp(ctx, errors.New("no timeline given"))
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	_, err = runPlay(sigCtx, cfg, filepath.Dir(path), ref, playOptions{
		chart:     chartRef,
		earliest:  earliestMS,
		dryRun:    dryRun,
		noRPC:     noRPC,
		noHistory: noHistory,
	})
	return err
}

func applyPlayFlags(ctx *cli.Context, cfg *config.Config) {
	if ctx.IsSet("step") {
		cfg.Step = stepDur
	}
	if ctx.IsSet("settle") {
		cfg.SettleDelay = settleDur
	}
	if noAckTap {
		cfg.AckTap = false
	}
	if transportOf != "" {
		cfg.Transport.Kind = transportOf
	}
	if rpcListen != "" {
		cfg.RPC.Listen = rpcListen
	}
	if scriptPath != "" {
		cfg.Script = scriptPath
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
}

// runPlay plays ref once. stateDir holds the token file fallback. The
// returned error is the session failure, already reported to the user.
func runPlay(ctx context.Context, cfg *config.Config, stateDir, ref string, o playOptions) (*scheduler.Result, error) {
	fileLog, closeLog, err := openLogFile(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		common.PrintRuntimeErr(nil, "play", "open_log", err)
		return nil, err
	}
	defer closeLog()
	base := teeLogger(newLogger(stderr, cfg.LogLevel), fileLog)
	display := source.StripCredentials(ref)

	tl, err := prepareTimeline(ctx, cfg, "play", ref, base)
	if err != nil {
		return nil, err
	}
	baseline, from, err := resolveBaseline(ctx, cfg, tl, o)
	if err != nil {
		common.PrintRuntimeErr(nil, "play", "read_chart", err)
		return nil, err
	}
	if !baseline.Valid {
		common.PrintRuntimeErr(nil, "play", "baseline", scheduler.ErrNoBaseline)
		return &scheduler.Result{
			State:  scheduler.StateCancelled,
			Reason: scheduler.ReasonPrecondition,
			Total:  tl.Len(),
		}, scheduler.ErrNoBaseline
	}

	sum := tl.Summarize()
	txt := fmt.Sprintf(`
Session Info
Timeline`+"\t"+`: %s
Groups`+"\t\t"+`: %d (%d actions)
Span`+"\t\t"+`: %dms - %dms
Base Delay`+"\t"+`: %s (from %s)
`,
		display, sum.Groups, sum.Actions, sum.FirstMS, sum.LastMS, baseline.Delay(), from,
	)
	if o.dryRun || cfg.Transport.Kind == config.KindRecorder {
		txt += "Transport\t: dry run\n"
	} else {
		txt += fmt.Sprintf("Transport\t: %s\n", cfg.Transport.Kind)
	}
	if cfg.LogFile != "" {
		txt += fmt.Sprintf("Log File\t: %s\n", cfg.LogFile)
	}
	fmt.Fprintln(stdout, txt)

	p := mpb.New(mpb.WithOutput(stdout), mpb.WithWidth(64))
	sessLog := base
	if cwriter.New(os.Stdout).IsTerminal() && stdout == os.Stdout {
		sessLog = teeLogger(newLogger(p, cfg.LogLevel), fileLog)
	}

	tr, err := newTransport(cfg, sessLog, o.dryRun)
	if err != nil {
		common.PrintRuntimeErr(nil, "play", "transport", err)
		return nil, err
	}
	defer tr.Close()

	lr := calibrate.NewLineReader(stdin)
	defer lr.Close()
	ch := calibrate.New(calibrate.Config{
		Step:  cfg.Step,
		Lines: lr.Lines(),
		Log:   sessLog,
	})

	counter := NewGroupCounter(50 * time.Millisecond)
	var bar *mpb.Bar
	confirm := func(ctx context.Context) error {
		fmt.Fprintln(stdout, "Press Enter to start")
		if _, err := lr.Next(ctx); err != nil {
			return fmt.Errorf("waiting for confirmation: %w", err)
		}
		fmt.Fprintln(stdout, calibrate.Help)
		bar = common.InitPlaybackBar(p, "", int64(tl.Len()))
		counter.SetBar(bar)
		counter.Start()
		return nil
	}

	sess := scheduler.NewSession()
	var srv *server.Server
	hooks := scheduler.Hooks{}
	if !o.noRPC {
		srv = newServer(cfg, stateDir, sessLog, base)
		hooks = srv.Hooks()
	}
	onDispatch := hooks.OnDispatch
	hooks.OnDispatch = func(d scheduler.Dispatch) {
		counter.Increment()
		if onDispatch != nil {
			onDispatch(d)
		}
	}

	sched, err := scheduler.New(scheduler.Config{
		Transport: tr,
		Timeline:  tl,
		Baseline:  baseline,
		Channel:   ch,
		Session:   sess,
		Confirm:   confirm,
		Log:       sessLog,
		Options:   cfg.SchedulerOptions(),
		Hooks:     hooks,
	})
	if err != nil {
		return nil, err
	}

	srvDone := make(chan struct{})
	srvCtx, stopSrv := context.WithCancel(context.Background())
	if srv != nil {
		srv.Attach(sched, ch)
		go func() {
			defer close(srvDone)
			if err := srv.Run(srvCtx); err != nil {
				base.Warning("remote control disabled: %v", err)
			}
		}()
	} else {
		close(srvDone)
	}

	restore := rt.Boost(sessLog)
	res, runErr := sched.Run(ctx)
	restore()

	counter.Stop()
	if bar != nil {
		if res != nil && res.State == scheduler.StateFinished {
			bar.SetTotal(-1, true)
		} else {
			bar.Abort(false)
		}
	}
	p.Wait()
	stopSrv()
	<-srvDone

	if res != nil {
		printResult(res)
		if !o.noHistory {
			recordHistory(cfg, base, display, res, runErr)
		}
	}
	if runErr != nil {
		common.PrintRuntimeErr(nil, "play", "run", runErr)
	}
	return res, runErr
}

func loadTimeline(ctx context.Context, cfg *config.Config, ref string) (*timeline.Timeline, error) {
	if !source.IsRemote(ref) {
		return timeline.Load(appFs, ref)
	}
	rc, err := openRef(ctx, cfg, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	tl, err := timeline.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source.StripCredentials(ref), err)
	}
	return tl, nil
}

// prepareTimeline loads ref, runs the configured script over it and logs
// the lifecycle warnings. Failures are reported under cmdName.
func prepareTimeline(ctx context.Context, cfg *config.Config, cmdName, ref string, l logger.Logger) (*timeline.Timeline, error) {
	tl, err := loadTimeline(ctx, cfg, ref)
	if err != nil {
		common.PrintRuntimeErr(nil, cmdName, "load_timeline", err)
		return nil, err
	}
	if cfg.Script != "" {
		conv, err := cfg.Converter()
		if err != nil {
			common.PrintRuntimeErr(nil, cmdName, "corners", err)
			return nil, err
		}
		s, err := script.Load(appFs, cfg.Script, script.Options{Converter: conv, Log: l})
		if err != nil {
			common.PrintRuntimeErr(nil, cmdName, "load_script", err)
			return nil, err
		}
		var st script.Stats
		tl, st, err = s.Apply(tl)
		if err != nil {
			common.PrintRuntimeErr(nil, cmdName, "run_script", err)
			return nil, err
		}
		l.Info("script kept %d, dropped %d, replaced %d groups", st.Kept, st.Dropped, st.Replaced)
	}
	for _, w := range tl.Validate() {
		l.Warning("%s", w)
	}
	return tl, nil
}

// resolveBaseline picks the earliest note instant from the chart, then
// the flag, then the timeline metadata.
func resolveBaseline(ctx context.Context, cfg *config.Config, tl *timeline.Timeline, o playOptions) (timeline.Baseline, string, error) {
	ref := o.chart
	if ref == "" {
		ref = cfg.Chart
	}
	if ref != "" {
		ms, ok, err := earliestInChart(ctx, cfg, ref)
		if err != nil || !ok {
			return timeline.Baseline{}, "chart", err
		}
		return timeline.BaselineAt(ms), "chart", nil
	}
	if o.earliest >= 0 {
		return timeline.BaselineAt(o.earliest), "flag", nil
	}
	return tl.Meta().Baseline(), "timeline metadata", nil
}

func earliestInChart(ctx context.Context, cfg *config.Config, ref string) (int64, bool, error) {
	rc, err := openRef(ctx, cfg, ref)
	if err != nil {
		return 0, false, err
	}
	defer rc.Close()
	return chart.EarliestInstant(rc)
}

func newServer(cfg *config.Config, stateDir string, sessLog, base logger.Logger) *server.Server {
	var tok string
	if cfg.RPC.Listen != "" {
		t, err := token.Ensure(token.NewKeyring(), token.NewFileStore(stateDir), base)
		if err != nil {
			base.Warning("no control token, network endpoint disabled: %v", err)
			cfg.RPC.Listen = ""
		}
		tok = t
	}
	return server.New(server.Config{
		Version:        currentBuildArgs.Version,
		Commit:         currentBuildArgs.Commit,
		BuildType:      currentBuildArgs.BuildType,
		Listen:         cfg.RPC.Listen,
		Token:          tok,
		AllowedOrigins: cfg.RPC.AllowedOrigins,
		MaxConns:       cfg.RPC.MaxConns,
		Log:            sessLog,
	})
}

func printResult(res *scheduler.Result) {
	txt := fmt.Sprintf("\nSession %s %s", res.ID, res.State)
	if res.Reason != scheduler.ReasonNone {
		txt += fmt.Sprintf(" (%s)", res.Reason)
	}
	txt += fmt.Sprintf(": %d/%d groups, offset %.3fs", res.Dispatched, res.Total, res.FinalOffset.Seconds())
	if res.Dispatched > 0 {
		txt += fmt.Sprintf(", max late %s, %d late groups", res.MaxLate, res.LateGroups)
	}
	fmt.Fprintln(stdout, txt)
}

func recordHistory(cfg *config.Config, l logger.Logger, ref string, res *scheduler.Result, runErr error) {
	store, err := hist.Open(historyPath(cfg))
	if err != nil {
		l.Warning("session not recorded: %v", err)
		return
	}
	defer store.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := store.Record(ctx, hist.FromResult(ref, res, runErr)); err != nil {
		l.Warning("session not recorded: %v", err)
	}
}

func historyPath(cfg *config.Config) string {
	if cfg.History != "" {
		return cfg.History
	}
	return hist.DefaultPath()
}
