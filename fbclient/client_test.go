package fbclient_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fbnetwork/corenet/fbclient"
	"github.com/fbnetwork/corenet/netconst"
)

func TestConnectSendAndReadUntil(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		if string(buf[:n]) == "ping\n" {
			conn.Write([]byte("pong\n"))
		}
	}()

	client, err := fbclient.New(netconst.IPv4, "127.0.0.1", port)
	require.NoError(t, err)
	require.NoError(t, client.ConnectToServer())
	defer client.DisconnectFromServer()

	require.NoError(t, client.SendData([]byte("ping\n")))
	require.NoError(t, client.ReadUntil([]byte("\n")))
	require.Equal(t, "pong\n", string(client.GetData()))

	<-serverDone
}

func TestSendDataRejectsEmptyPayload(t *testing.T) {
	client, err := fbclient.New(netconst.IPv4, "127.0.0.1", 1)
	require.NoError(t, err)
	err = client.SendData(nil)
	require.Error(t, err)
}

func TestReadTimeoutWhenServerSendsNothing(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(2 * time.Second)
		}
	}()

	client, err := fbclient.New(netconst.IPv4, "127.0.0.1", port)
	require.NoError(t, err)
	require.NoError(t, client.ConnectToServer())
	defer client.DisconnectFromServer()

	require.NoError(t, client.SetTimeout(150*time.Millisecond))
	err = client.ReadExact(1)
	require.Error(t, err)
}

func TestNewRejectsLocalDomain(t *testing.T) {
	_, err := fbclient.New(netconst.Local, "127.0.0.1", 1)
	require.Error(t, err)
}

func TestNewUnixRejectsOverlongPath(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	_, err := fbclient.NewUnix(string(long))
	require.Error(t, err)
}
