package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/xaionaro-go/screenrec/control"
)

func runCtl(ctx context.Context, args []string) (_err error) {
	fs := pflag.NewFlagSet("ctl", pflag.ExitOnError)
	fs.SetInterspersed(false)
	addr := fs.String("addr", defaultControlAddr, "the address of the control server")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("expected one of: start, stop, save-replay")
	}

	client, err := control.Dial(*addr)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil && _err == nil {
			_err = err
		}
	}()

	var reply string
	switch cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]; cmd {
	case "start":
		startFS := pflag.NewFlagSet("ctl start", pflag.ExitOnError)
		var s control.StartSettings
		startFS.StringVarP(&s.OutputPath, "output", "o", "output.mp4", "output MP4 file (on the server side)")
		startFS.Uint32Var(&s.FPS, "fps", 30, "frames per second")
		startFS.BoolVar(&s.RecordAudio, "audio", true, "capture the desktop audio")
		startFS.StringVar(&s.ProcessName, "process-name", "", "capture the window of this process")
		if err := startFS.Parse(cmdArgs); err != nil {
			return err
		}
		reply, err = client.Start(ctx, s)
	case "stop":
		reply, err = client.Stop(ctx)
	case "save-replay":
		saveFS := pflag.NewFlagSet("ctl save-replay", pflag.ExitOnError)
		path := saveFS.StringP("output", "o", "replay.mp4", "where to save the replay (on the server side)")
		if err := saveFS.Parse(cmdArgs); err != nil {
			return err
		}
		reply, err = client.SaveReplay(ctx, *path)
	default:
		return fmt.Errorf("unknown ctl command '%s'", cmd)
	}
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}
