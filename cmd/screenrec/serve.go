package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gofrs/flock"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/screenrec/control"
	"google.golang.org/grpc"
)

const defaultControlAddr = "127.0.0.1:50051"

func runServe(ctx context.Context, args []string) (_err error) {
	fs := pflag.NewFlagSet("serve", pflag.ExitOnError)
	listenAddr := fs.String("listen-addr", defaultControlAddr, "the address to listen for control requests")
	lockPath := fs.String("lock-file", filepath.Join(os.TempDir(), "screenrec.lock"), "only one server per lock file may run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	lock := flock.New(*lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("unable to acquire the lock '%s': %w", *lockPath, err)
	}
	if !locked {
		return fmt.Errorf("another control server holds the lock '%s'", *lockPath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Errorf(ctx, "unable to release the lock '%s': %v", *lockPath, err)
		}
	}()

	listener, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		return fmt.Errorf("unable to listen '%s': %w", *listenAddr, err)
	}

	srv := control.NewServer(ctx)
	defer func() {
		if err := srv.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Errorf(ctx, "unable to close the control server: %v", err)
		}
	}()

	grpcServer := grpc.NewServer()
	control.RegisterControlServer(grpcServer, srv)

	observability.Go(ctx, func(ctx context.Context) {
		<-ctx.Done()
		logger.Infof(ctx, "stopping the control server")
		grpcServer.GracefulStop()
	})

	logger.Infof(ctx, "serving control requests at %s", listener.Addr())
	if err := grpcServer.Serve(listener); err != nil {
		return fmt.Errorf("unable to serve: %w", err)
	}
	return nil
}
