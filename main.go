package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/netseam/ipfrag/cli"
	"github.com/netseam/ipfrag/config"
	"github.com/netseam/ipfrag/fragment"
	"github.com/netseam/ipfrag/ifmtu"
	"github.com/netseam/ipfrag/logx"
	"github.com/netseam/ipfrag/packet"
	"github.com/netseam/ipfrag/rawsock"
)

// rxBatch bounds how many frames one tick pulls from a socket before the
// stage runs, so a flood cannot starve Push.
const rxBatch = 256

func main() {
	cfg := config.DefaultConfig

	// 0) CLI first, so cfg.Verbose/Syslog/Instaflush are set.
	if err := cli.Parse(&cfg, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ipfragd: %v\n", err)
		os.Exit(1)
	}

	// 1) Init logging based on parsed flags.
	initLogging(&cfg)

	if cfg.InputIface == "" || cfg.OutputIface == "" {
		logx.Errorf("--input and --output are required")
		os.Exit(1)
	}
	if cfg.PMTUD && (cfg.SouthIface == "" || cfg.NorthIface == "") {
		logx.Errorf("--pmtud requires --south and --north")
		os.Exit(1)
	}

	// 2) Resolve the egress MTU when asked to autodetect.
	if cfg.MTU == 0 {
		mtu, err := ifmtu.MTU(cfg.OutputIface)
		if err != nil {
			logx.Errorf("mtu autodetect: %v", err)
			os.Exit(1)
		}
		cfg.MTU = uint16(mtu)
		logx.Infof("autodetected mtu %d on %s", mtu, cfg.OutputIface)
	}

	// 3) Build the stage.
	pool := packet.NewPool(1024)
	frag, err := fragment.New(&cfg, pool, fragment.NewSystemClock())
	if err != nil {
		logx.Errorf("fragmenter init: %v", err)
		os.Exit(1)
	}
	defer frag.Counters.Close()

	// 4) Open the wire ports.
	in, err := rawsock.Open(cfg.InputIface)
	if err != nil {
		logx.Errorf("%v", err)
		os.Exit(1)
	}
	defer in.Close()
	out, err := rawsock.Open(cfg.OutputIface)
	if err != nil {
		logx.Errorf("%v", err)
		os.Exit(1)
	}
	defer out.Close()

	var south, north *rawsock.Port
	if cfg.PMTUD {
		if south, err = rawsock.Open(cfg.SouthIface); err != nil {
			logx.Errorf("%v", err)
			os.Exit(1)
		}
		defer south.Close()
		if north, err = rawsock.Open(cfg.NorthIface); err != nil {
			logx.Errorf("%v", err)
			os.Exit(1)
		}
		defer north.Close()
	}

	logx.Infof("starting ipfragd: %s -> %s, mtu=%d, pmtud=%v",
		cfg.InputIface, cfg.OutputIface, cfg.MTU, cfg.PMTUD)

	// 5) Pump until signalled.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()

	buf := make([]byte, packet.MaxSize)
	for {
		select {
		case s := <-sig:
			logx.Infof("signal %s received, shutting down...", s)
			logx.Flush()
			return
		case <-tick.C:
			pump(frag, pool, buf, in, out, south, north)
		}
	}
}

// pump moves one tick's worth of frames: sockets to stage ports, one Push,
// stage ports back to sockets.
func pump(frag *fragment.Fragmenter, pool *packet.Pool, buf []byte,
	in, out, south, north *rawsock.Port) {

	for i := 0; i < rxBatch; i++ {
		n, err := in.Recv(buf)
		if err != nil {
			logx.Errorf("%v", err)
			break
		}
		if n == 0 {
			break
		}
		frag.Input.Transmit(pool.FromBytes(buf[:n]))
	}
	if south != nil {
		for i := 0; i < rxBatch; i++ {
			n, err := south.Recv(buf)
			if err != nil {
				logx.Errorf("%v", err)
				break
			}
			if n == 0 {
				break
			}
			frag.South.Transmit(pool.FromBytes(buf[:n]))
		}
	}

	frag.Push()

	for {
		p := frag.Output.Receive()
		if p == nil {
			break
		}
		if err := out.Send(p.Bytes()); err != nil {
			logx.Errorf("%v", err)
		}
		pool.Put(p)
	}
	if north != nil {
		for {
			p := frag.North.Receive()
			if p == nil {
				break
			}
			if err := north.Send(p.Bytes()); err != nil {
				logx.Errorf("%v", err)
			}
			pool.Put(p)
		}
	}
}

func initLogging(cfg *config.Config) {
	var lvl logx.Level
	switch cfg.Verbose {
	case config.VerboseTrace:
		lvl = logx.LevelTrace
	case config.VerboseDebug:
		lvl = logx.LevelDebug
	default:
		lvl = logx.LevelInfo
	}
	logx.Init(os.Stderr, lvl, cfg.Instaflush)
	if cfg.Syslog {
		if err := logx.EnableSyslog("ipfragd"); err != nil {
			logx.Errorf("syslog enable failed: %v", err)
		}
	}
}
