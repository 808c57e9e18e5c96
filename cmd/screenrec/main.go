package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/screenrec"
)

type command struct {
	Name  string
	Usage string
	Run   func(ctx context.Context, args []string) error
}

var commands = []command{
	{Name: "record", Usage: "record the screen into a file", Run: runRecord},
	{Name: "serve", Usage: "run the control server", Run: runServe},
	{Name: "devices", Usage: "list audio inputs and video encoders", Run: runDevices},
	{Name: "ctl", Usage: "send a command to the control server", Run: runCtl},
}

func usage() {
	fmt.Fprintf(os.Stderr, "syntax: %s [global flags] <command> [flags]\n\ncommands:\n", os.Args[0])
	for _, cmd := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", cmd.Name, cmd.Usage)
	}
	fmt.Fprintf(os.Stderr, "\nglobal flags:\n")
	pflag.PrintDefaults()
}

func main() {
	pflag.Usage = usage
	pflag.CommandLine.SetInterspersed(false)

	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	pflag.Parse()
	if pflag.NArg() < 1 {
		pflag.Usage()
		os.Exit(1)
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	ctx, cancelFn := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancelFn()

	if *netPprofAddr != "" {
		observability.Go(ctx, func(ctx context.Context) { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	defer func() {
		if err := screenrec.CloseDefaultFactory(ctx); err != nil {
			logger.Errorf(ctx, "unable to release the capture backend: %v", err)
		}
	}()

	name := pflag.Arg(0)
	for _, cmd := range commands {
		if cmd.Name != name {
			continue
		}
		if err := cmd.Run(ctx, pflag.Args()[1:]); err != nil {
			logger.Errorf(ctx, "%s: %v", name, err)
			belt.Flush(ctx)
			os.Exit(1)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "unknown command '%s'\n\n", name)
	pflag.Usage()
	os.Exit(1)
}
