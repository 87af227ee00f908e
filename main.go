package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/CodedInternet/rescuebot/comms"
	"github.com/CodedInternet/rescuebot/linectl"
	"github.com/CodedInternet/rescuebot/onboard"
	"github.com/CodedInternet/rescuebot/onboard/hardware"
	"github.com/CodedInternet/rescuebot/webctl"
	"github.com/caarlos0/env/v6"
	"golang.org/x/sys/unix"
	"gopkg.in/natefinch/lumberjack.v2"
	"periph.io/x/conn/v3/physic"
)

type EnvConfig struct {
	HTTP_ADDR     string        `env:"HTTP_ADDR" envDefault:":80"`
	TCP_ADDR      string        `env:"TCP_ADDR" envDefault:":12345"`
	STATUS_ADDR   string        `env:"STATUS_ADDR" envDefault:":8080"`
	DEVICE_CONFIG string        `env:"DEVICE_CONFIG"`
	JOURNAL_PATH  string        `env:"JOURNAL_PATH"`
	LOG_FILE      string        `env:"LOG_FILE"`
	NET_IFACE     string        `env:"NET_IFACE"`
	NET_TIMEOUT   time.Duration `env:"NET_TIMEOUT" envDefault:"15s"`
	DEBUG         bool          `env:"DEBUG" envDefault:"0"`
	Simulated     bool
	Shell         bool
}

var (
	ENV *EnvConfig
)

func loadEnv() (*EnvConfig, error) {
	cfg := new(EnvConfig)
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("unable to parse environment: %w", err)
	}
	return cfg, nil
}

func main() {
	// process flags
	simulated := flag.Bool("sim", false, "Run against the in-memory actuator driver")
	console := flag.Bool("shell", false, "Start the operator shell on stdin")
	flag.Parse()

	var err error
	ENV, err = loadEnv()
	if err != nil {
		log.Fatal(err)
	}
	ENV.Simulated = *simulated
	ENV.Shell = *console

	setupLogging(ENV)

	if err := run(ENV); err != nil {
		log.Printf("rescuebot: %v", err)
		os.Exit(1)
	}
}

func setupLogging(cfg *EnvConfig) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if cfg.LOG_FILE == "" {
		return
	}
	rotated := &lumberjack.Logger{
		Filename:   cfg.LOG_FILE,
		MaxSize:    5, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
	}
	if cfg.DEBUG {
		log.SetOutput(io.MultiWriter(os.Stderr, rotated))
	} else {
		log.SetOutput(rotated)
	}
}

func openDriver(cfg *EnvConfig, device *onboard.DeviceConfig) (hardware.Driver, error) {
	if cfg.Simulated {
		log.Println("Creating simulated actuator driver")
		return hardware.NewSimulatedDriver(), nil
	}
	freq := physic.Frequency(device.PWMFrequencyHz) * physic.Hertz
	driver, err := hardware.NewPeriphDriver(device.Pins.PinMap(), freq)
	if err != nil {
		return nil, err
	}
	return driver, nil
}

// run owns the actuators for the lifetime of the process. Every return path
// leaves the outputs stopped.
func run(cfg *EnvConfig) error {
	device, err := onboard.LoadDeviceConfig(cfg.DEVICE_CONFIG)
	if err != nil {
		return err
	}

	driver, err := openDriver(cfg, device)
	if err != nil {
		return fmt.Errorf("unable to open actuator driver: %w", err)
	}
	defer driver.Close()

	rover := onboard.NewActuatorController(driver, device)
	defer func() {
		if err := rover.Close(); err != nil {
			log.Printf("stop on shutdown failed: %v", err)
		}
	}()

	if err := rover.StopAll(); err != nil {
		return err
	}

	ctx := context.Background()
	ip, err := waitForAddress(ctx, interfaceAddrs(cfg.NET_IFACE), cfg.NET_TIMEOUT, 250*time.Millisecond)
	if err != nil {
		return err
	}
	if ip != nil {
		log.Printf("Network address %s", ip)
	}

	var journal *comms.Journal
	if cfg.JOURNAL_PATH != "" {
		journal, err = comms.OpenJournal(cfg.JOURNAL_PATH)
		if err != nil {
			return err
		}
		defer journal.Close()
	}

	conductor := comms.NewConductor(rover, journal)
	errs := make(chan error, 3)

	web := webctl.NewServer(cfg.HTTP_ADDR, conductor)
	go func() {
		errs <- fmt.Errorf("HTTP control: %w", web.ListenAndServe())
	}()
	defer web.Close()

	lines := linectl.NewServer(cfg.TCP_ADDR, conductor)
	go func() {
		errs <- fmt.Errorf("line protocol: %w", lines.ListenAndServe())
	}()
	defer lines.Close()

	if cfg.STATUS_ADDR != "" {
		status := &http.Server{
			Addr:    cfg.STATUS_ADDR,
			Handler: webctl.NewStatusRouter(conductor, 100*time.Millisecond),
		}
		go func() {
			log.Printf("Status listening on %s", cfg.STATUS_ADDR)
			if err := status.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("status: %w", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			status.Shutdown(ctx)
		}()
	}

	shellDone := make(chan struct{})
	if cfg.Shell {
		shell := newShell(conductor)
		go func() {
			shell.Run()
			close(shellDone)
		}()
		// registered after the journal so the shell stops dispatching first
		defer func() {
			shell.Close()
			select {
			case <-shellDone:
			case <-time.After(time.Second):
				log.Println("timed out waiting for the shell to stop")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, unix.SIGINT, unix.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Printf("Received %s, shutting down", sig)
		return nil
	case <-shellDone:
		log.Println("Shell closed, shutting down")
		return nil
	case err := <-errs:
		return err
	}
}
