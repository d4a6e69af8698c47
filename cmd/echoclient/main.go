// File: cmd/echoclient/main.go
// Author: corenet contributors
//
// Command echoclient connects to an echoserver instance, sends each
// line typed on stdin, and prints the line echoed back.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/fbnetwork/corenet/fbclient"
	"github.com/fbnetwork/corenet/netconst"
)

func main() {
	addr := flag.String("addr", "127.0.0.1", "server IPv4 address")
	port := flag.Int("port", 9001, "server port")
	socketPath := flag.String("socket", "", "UNIX socket path; when set, -addr/-port are ignored")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var client *fbclient.Client
	var err error
	if *socketPath != "" {
		client, err = fbclient.NewUnix(*socketPath, fbclient.WithLogger(logger))
	} else {
		client, err = fbclient.New(netconst.IPv4, *addr, *port, fbclient.WithLogger(logger))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "echoclient: %v\n", err)
		os.Exit(1)
	}

	if err := client.ConnectToServer(); err != nil {
		fmt.Fprintf(os.Stderr, "echoclient: %v\n", err)
		os.Exit(1)
	}
	defer client.DisconnectFromServer()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if err := client.SendData([]byte(line + "\n")); err != nil {
			fmt.Fprintf(os.Stderr, "echoclient: send failed: %v\n", err)
			return
		}
		if err := client.ReadUntil([]byte("\n")); err != nil {
			fmt.Fprintf(os.Stderr, "echoclient: read failed: %v\n", err)
			return
		}
		fmt.Print(string(client.GetData()))
	}
}
