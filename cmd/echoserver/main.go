// File: cmd/echoserver/main.go
// Author: corenet contributors
// License: Apache-2.0
//
// Command echoserver runs a line-oriented echo server over the
// fbserver/eventqueue stack: every line a client sends, terminated by
// "\n", is written back unchanged.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fbnetwork/corenet/fbserver"
	"github.com/fbnetwork/corenet/netconst"
)

func main() {
	addr := flag.String("addr", "0.0.0.0", "address shown in the startup log; the server always binds the IPv4 wildcard address")
	port := flag.Int("port", 9001, "listen port")
	socketPath := flag.String("socket", "", "UNIX socket path; when set, -addr/-port are ignored")
	backlog := flag.Int("backlog", 128, "maximum number of simultaneously connected clients")
	readTimeout := flag.Duration("read-timeout", 60*time.Second, "per-client read timeout")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var srv *fbserver.Server
	var err error
	if *socketPath != "" {
		srv, err = fbserver.NewUnixServer(*socketPath, *backlog,
			fbserver.WithLogger(logger))
	} else {
		domain := netconst.IPv4
		srv, err = fbserver.NewServer(domain, *port, *backlog,
			fbserver.WithLogger(logger))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "echoserver: %v\n", err)
		os.Exit(1)
	}

	if err := srv.SetTimeout(*readTimeout); err != nil {
		fmt.Fprintf(os.Stderr, "echoserver: %v\n", err)
		os.Exit(1)
	}
	if err := srv.StartServer(); err != nil {
		fmt.Fprintf(os.Stderr, "echoserver: %v\n", err)
		os.Exit(1)
	}
	if err := srv.StartListening(); err != nil {
		fmt.Fprintf(os.Stderr, "echoserver: %v\n", err)
		os.Exit(1)
	}

	if *socketPath != "" {
		logger.Infof("echoserver listening on unix:%s", *socketPath)
	} else {
		logger.Infof("echoserver listening on %s:%d", *addr, *port)
	}

	done := make(chan struct{})
	go serve(srv, logger, done)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down echoserver")
	close(done)
	if err := srv.StopServer(); err != nil {
		logger.WithError(err).Error("stop server failed")
	}
}

func serve(srv *fbserver.Server, logger *logrus.Logger, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		events, err := srv.GetPendingEvents()
		if err != nil {
			logger.WithError(err).Warn("GetPendingEvents failed")
			continue
		}
		if len(events) == 0 {
			continue
		}

		for _, ev := range events {
			switch ev.Intent {
			case fbserver.IntentClientWantsToConnect:
				clientID, err := srv.AcceptClient()
				if err != nil {
					logger.WithError(err).Warn("AcceptClient failed")
					continue
				}
				logger.WithField("client", clientID).Info("client connected")
			case fbserver.IntentClientWantsToSendData:
				handleLine(srv, logger, ev.ClientID)
			case fbserver.IntentError:
				logger.Warn("event queue reported an error event")
			}
		}
	}
}

func handleLine(srv *fbserver.Server, logger *logrus.Logger, clientID int) {
	if err := srv.ReadUntil(clientID, []byte("\n")); err != nil {
		logger.WithField("client", clientID).WithError(err).Info("client disconnected")
		return
	}
	data, err := srv.GetData(clientID)
	if err != nil {
		logger.WithField("client", clientID).WithError(err).Warn("GetData failed")
		return
	}
	if err := srv.SendData(clientID, data); err != nil {
		logger.WithField("client", clientID).WithError(err).Warn("send failed")
	}
}
