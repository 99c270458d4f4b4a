// Command rdlink is the thin CLI driver described in spec.md §6.4: it
// opens a serial device, performs the link-layer handshake, and either
// transmits a file or receives one into a file path.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rdproto/rdlink/pkg/appproto"
	"github.com/rdproto/rdlink/pkg/linklayer"
	"github.com/rdproto/rdlink/pkg/serialport"
	"github.com/rdproto/rdlink/pkg/telemetry"
)

var (
	serialDevice = flag.String("serial", "/dev/ttyS0", "Serial device path")
	role         = flag.String("role", "", "Role: tx or rx")
	baudRate     = flag.Int("baud", 9600, "Serial baud rate")
	retries      = flag.Int("retries", 3, "Maximum retransmission count (N)")
	timeoutSecs  = flag.Int("timeout", 3, "Per-attempt timeout in seconds (T)")
	filePath     = flag.String("file", "", "File to send (tx) or write to (rx)")
	showStats    = flag.Bool("stats", true, "Print link-layer statistics on close")

	redisAddr = flag.String("redis-addr", "", "Optional Redis address for telemetry (disabled if empty)")
	redisPass = flag.String("redis-pass", "", "Redis password for telemetry")
	redisDB   = flag.Int("redis-db", 0, "Redis database number for telemetry")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	r, err := parseRole(*role)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if *filePath == "" {
		log.Fatalf("missing required -file flag")
	}

	log.Printf("Starting rdlink: role=%s serial=%s baud=%d retries=%d timeout=%ds",
		r, *serialDevice, *baudRate, *retries, *timeoutSecs)

	var observer telemetry.Observer
	if *redisAddr != "" {
		obs, err := telemetry.NewRedisObserver(*redisAddr, *redisPass, *redisDB, "rdlink:events")
		if err != nil {
			log.Printf("telemetry disabled: %v", err)
		} else {
			observer = obs
			defer obs.Close()
			log.Printf("Telemetry enabled: publishing to %s", *redisAddr)
		}
	}

	port, err := serialport.Open(*serialDevice, *baudRate)
	if err != nil {
		log.Fatalf("failed to open serial port: %v", err)
	}

	params := linklayer.Params{
		Role: r,
		N:    *retries,
		T:    time.Duration(*timeoutSecs) * time.Second,
	}
	engine := linklayer.New(params, port, observer)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("Received shutdown signal, closing session")
		_ = engine.Close(*showStats)
		os.Exit(1)
	}()

	log.Printf("Opening session...")
	if err := engine.Open(); err != nil {
		log.Fatalf("failed to open session: %v", err)
	}
	log.Printf("Session open")

	if r == linklayer.Transmitter {
		err = runTransmit(engine, *filePath)
	} else {
		err = runReceive(engine, *filePath)
	}

	if closeErr := engine.Close(*showStats); closeErr != nil {
		log.Printf("error during close: %v", closeErr)
		if err == nil {
			err = closeErr
		}
	}

	if err != nil {
		log.Fatalf("transfer failed: %v", err)
	}
	log.Printf("Transfer complete")
}

func parseRole(s string) (linklayer.Role, error) {
	switch s {
	case "tx":
		return linklayer.Transmitter, nil
	case "rx":
		return linklayer.Receiver, nil
	default:
		return 0, fmt.Errorf("invalid -role %q: must be tx or rx", s)
	}
}

func runTransmit(engine *linklayer.Engine, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	sender := appproto.NewSender(engine, 512)
	if err := sender.Run(f, filepath.Base(path)); err != nil {
		return fmt.Errorf("transmit failed: %w", err)
	}
	return nil
}

func runReceive(engine *linklayer.Engine, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	receiver := appproto.NewReceiver(engine, 1024)
	filename, err := receiver.Run(f)
	if err != nil {
		return fmt.Errorf("receive failed: %w", err)
	}
	log.Printf("Received file originally named %q", filename)
	return nil
}
