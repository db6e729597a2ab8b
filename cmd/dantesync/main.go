// dantesync disciplines the local clock's frequency against a Dante PTPv1
// grandmaster and its phase against NTP, and serves the resulting sync
// state to a local UI over an IPC channel.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zbynekdrlik/dantetimesync/internal/clock"
	"github.com/zbynekdrlik/dantetimesync/internal/config"
	"github.com/zbynekdrlik/dantetimesync/internal/matcher"
	"github.com/zbynekdrlik/dantetimesync/internal/ntpclient"
	"github.com/zbynekdrlik/dantetimesync/internal/ptp"
	"github.com/zbynekdrlik/dantetimesync/internal/servo"
	"github.com/zbynekdrlik/dantetimesync/internal/status"
)

var log *zap.Logger

func initLogger(verbose bool) {
	c := zap.NewProductionConfig()
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		c.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	var err error
	log, err = c.Build()
	if err != nil {
		panic(err)
	}
}

func exitWithUsage(msg string) {
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	fmt.Fprintln(os.Stderr, "usage: dantesync [--interface <name>] [--ntp-server <ip>] [--skip-ntp] [--config <path>] [--verbose] [--version]")
	os.Exit(1)
}

func runPTPThread(log *zap.Logger, recv ptp.Receiver, m *matcher.Matcher, s *servo.Servo, shutdown <-chan struct{}) {
	defer recv.Close()
	for {
		select {
		case <-shutdown:
			return
		default:
		}

		pkt, err := recv.Receive()
		if err != nil {
			if err == ptp.ErrClosed {
				return
			}
			log.Warn("ptp receive error", zap.Error(err))
			continue
		}

		switch pkt.Header.MessageType {
		case ptp.MessageTypeSync:
			m.OnSync(pkt)
		case ptp.MessageTypeFollowUp:
			sample, ok := m.OnFollowUp(pkt)
			if ok {
				s.PushRaw(pkt.Header.SourceUUID, sample)
			}
		}
	}
}

func runDropoutTicker(clk interface{ NowWall() time.Time }, s *servo.Servo, shutdown <-chan struct{}) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-shutdown:
			return
		case <-t.C:
			s.CheckDropout(clk.NowWall())
		}
	}
}

func runMetricsServer(log *zap.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn("metrics server stopped", zap.Error(err))
	}
}

func buildSnapshot(s *servo.Servo, tracker *ntpclient.Tracker, haveTracker bool) status.Snapshot {
	gm, haveGM := s.LastGrandmaster()
	gmID := ""
	if haveGM {
		gmID = fmt.Sprintf("%x", gm)
	}
	mode := s.Mode()
	snap := status.Snapshot{
		Mode:               mode.String(),
		IsLocked:           mode == servo.ModeLock || mode == servo.ModeNano,
		SmoothedRateNsPerS: s.DriftRate(),
		AppliedPPM:         s.CurrentPPM(),
		GrandmasterID:      gmID,
		Version:            status.Version,
		PTPOffline:         mode == servo.ModeNTPOnly,
	}
	if haveTracker {
		snap.NTPFailed = tracker.FailStreak() >= 3
		snap.LastPacketHostTime = tracker.LastSampleAt()
		snap.NTPOffsetP99Us = tracker.OffsetPercentileUs(99)
		snap.NTPRTTP99Us = tracker.RTTPercentileUs(99)
	}
	return snap
}

func runStatusPublisherLoop(s *servo.Servo, tracker *ntpclient.Tracker, haveTracker bool, pub *status.Publisher, shutdown <-chan struct{}) {
	t := time.NewTicker(500 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-shutdown:
			return
		case <-t.C:
			pub.Update(func() status.Snapshot {
				return buildSnapshot(s, tracker, haveTracker)
			})
		}
	}
}

func run(ifaceFlag, ntpServerFlag string, skipNTP bool, configPath string, stop <-chan struct{}) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error("failed to load configuration", zap.Error(err))
		return 1
	}
	if ifaceFlag != "" {
		cfg.Interface = ifaceFlag
	}
	if ntpServerFlag != "" {
		cfg.NTPServer = ntpServerFlag
	}

	clk, err := clock.New(log)
	if err != nil {
		log.Error("failed to construct system clock", zap.Error(err))
		return 1
	}

	recv, err := ptp.NewReceiver(log, cfg.Interface)
	if err != nil {
		log.Error("failed to start ptp receiver", zap.Error(err), zap.String("interface", cfg.Interface))
		return 1
	}

	scfg := servo.DefaultConfig()
	scfg.Kp = cfg.Kp
	scfg.Ki = cfg.Ki
	scfg.FilterWindowSize = cfg.SampleWindowSize
	scfg.MinDeltaNs = cfg.MinDelta()
	scfg.CalibrationSamples = cfg.CalibrationSamples
	scfg.Warmup = cfg.Warmup()
	scfg.PanicThresholdNsPerS = cfg.PanicThresholdNsPerS
	scfg.StartupCalibrationSamples = cfg.StartupCalibrationSamples
	scfg.NanoDeadbandNsPerS = cfg.NanoDeadbandNsPerS

	s := servo.New(log, clk, scfg)
	s.Start()
	m := matcher.New(log, 500*time.Millisecond)

	pub := status.NewPublisher(log)
	listener, err := status.NewListener("")
	if err != nil {
		log.Error("failed to bind status ipc listener", zap.Error(err))
		return 1
	}
	ipcServer := status.NewServer(log, pub, listener)

	var tracker *ntpclient.Tracker
	if !skipNTP {
		client := ntpclient.New(cfg.NTPServer)
		tracker = ntpclient.NewTracker(log, clk, client, 5*time.Minute, cfg.StepThreshold(), cfg.Warmup(), m)
	}

	shutdown := make(chan struct{})

	go runPTPThread(log, recv, m, s, shutdown)
	go runDropoutTicker(clk, s, shutdown)
	go runStatusPublisherLoop(s, tracker, tracker != nil, pub, shutdown)
	go runMetricsServer(log, "127.0.0.1:9090")
	go func() {
		if err := ipcServer.Serve(); err != nil {
			log.Warn("status ipc server stopped", zap.Error(err))
		}
	}()
	if tracker != nil {
		go tracker.Run()
	}

	<-stop
	close(shutdown)
	recv.Close()
	ipcServer.Close()
	if tracker != nil {
		tracker.Stop()
	}
	if restorable, ok := clk.(interface{ Restore() }); ok {
		restorable.Restore()
	}
	return 0
}

func main() {
	var (
		iface      string
		ntpServer  string
		skipNTP    bool
		service    bool
		verbose    bool
		showVer    bool
		configPath string
	)

	flag.StringVar(&iface, "interface", "", "bind to named NIC (when empty, no NIC is selected: the Linux socket receiver joins the PTP multicast group on the kernel's default interface)")
	flag.StringVar(&ntpServer, "ntp-server", "", "override default NTP server")
	flag.BoolVar(&skipNTP, "skip-ntp", false, "disable the NTP tracker entirely")
	flag.BoolVar(&service, "service", false, "run under the service control manager (Windows only)")
	flag.BoolVar(&verbose, "verbose", false, "verbose logging")
	flag.BoolVar(&showVer, "version", false, "print semantic version and exit")
	flag.StringVar(&configPath, "config", config.DefaultPath(), "configuration file path")
	flag.Parse()

	if showVer {
		fmt.Println(status.Version)
		os.Exit(0)
	}
	if service && runtime.GOOS != "windows" {
		exitWithUsage("--service is only supported on Windows")
	}

	initLogger(verbose)
	defer log.Sync()

	if service {
		runAsService(iface, ntpServer, skipNTP, configPath)
		return
	}

	stop := make(chan struct{})
	go func() {
		waitForShutdownSignal()
		close(stop)
	}()
	os.Exit(run(iface, ntpServer, skipNTP, configPath, stop))
}
