package fbserver_test

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fbnetwork/corenet/fbserver"
	"github.com/fbnetwork/corenet/netconst"
)

func newRunningServer(t *testing.T, backlog int) *fbserver.Server {
	t.Helper()
	srv, err := fbserver.NewServer(netconst.IPv4, 0, backlog)
	require.NoError(t, err)
	require.NoError(t, srv.StartServer())
	require.NoError(t, srv.StartListening())
	t.Cleanup(func() { _ = srv.StopServer() })
	return srv
}

func TestIPv4EchoRoundTrip(t *testing.T) {
	srv, err := fbserver.NewServer(netconst.IPv4, 39001, 4)
	require.NoError(t, err)
	require.NoError(t, srv.StartServer())
	require.NoError(t, srv.StartListening())
	t.Cleanup(func() { _ = srv.StopServer() })

	client, err := net.Dial("tcp4", "127.0.0.1:39001")
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte("ping\n"))
	require.NoError(t, err)

	events, err := srv.GetPendingEvents()
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, fbserver.IntentClientWantsToConnect, events[0].Intent)

	id, err := srv.AcceptClient()
	require.NoError(t, err)
	require.Equal(t, 0, id)

	events, err = srv.GetPendingEvents()
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, fbserver.IntentClientWantsToSendData, events[0].Intent)
	require.Equal(t, id, events[0].ClientID)

	require.NoError(t, srv.ReadUntil(id, []byte("\n")))
	data, err := srv.GetData(id)
	require.NoError(t, err)
	require.Equal(t, "ping\n", string(data))

	require.NoError(t, srv.SendData(id, []byte("pong\n")))

	buf := make([]byte, 64)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := client.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "pong\n", string(buf[:n]))
}

func TestReadExactCollectsAcrossWrites(t *testing.T) {
	port := 39002
	srv, err := fbserver.NewServer(netconst.IPv4, port, 4)
	require.NoError(t, err)
	require.NoError(t, srv.StartServer())
	require.NoError(t, srv.StartListening())
	t.Cleanup(func() { _ = srv.StopServer() })

	client, err := net.Dial("tcp4", "127.0.0.1:39002")
	require.NoError(t, err)
	defer client.Close()

	_, err = srv.GetPendingEvents()
	require.NoError(t, err)
	id, err := srv.AcceptClient()
	require.NoError(t, err)

	go func() {
		client.Write([]byte("ABCD"))
		time.Sleep(10 * time.Millisecond)
		client.Write([]byte("EFGHIJ"))
	}()

	require.NoError(t, srv.ReadExact(id, 10))
	data, err := srv.GetData(id)
	require.NoError(t, err)
	require.Equal(t, "ABCDEFGHIJ", string(data))
}

func TestReadUntilNthCountsDelimiters(t *testing.T) {
	port := 39003
	srv, err := fbserver.NewServer(netconst.IPv4, port, 4)
	require.NoError(t, err)
	require.NoError(t, srv.StartServer())
	require.NoError(t, srv.StartListening())
	t.Cleanup(func() { _ = srv.StopServer() })

	client, err := net.Dial("tcp4", "127.0.0.1:39003")
	require.NoError(t, err)
	defer client.Close()

	_, err = srv.GetPendingEvents()
	require.NoError(t, err)
	id, err := srv.AcceptClient()
	require.NoError(t, err)

	_, err = client.Write([]byte("a|b|c|d|"))
	require.NoError(t, err)

	require.NoError(t, srv.ReadUntilNth(id, []byte("|"), 3))
	data, err := srv.GetData(id)
	require.NoError(t, err)
	require.Equal(t, "a|b|c|", string(data))
}

func TestReadTimeoutLeavesServerOnline(t *testing.T) {
	port := 39004
	srv, err := fbserver.NewServer(netconst.IPv4, port, 4)
	require.NoError(t, err)
	require.NoError(t, srv.StartServer())
	require.NoError(t, srv.StartListening())
	t.Cleanup(func() { _ = srv.StopServer() })

	client, err := net.Dial("tcp4", "127.0.0.1:39004")
	require.NoError(t, err)
	defer client.Close()

	_, err = srv.GetPendingEvents()
	require.NoError(t, err)
	id, err := srv.AcceptClient()
	require.NoError(t, err)

	require.NoError(t, srv.SetTimeout(200*time.Millisecond))
	err = srv.ReadExact(id, 1)
	require.Error(t, err)
	require.True(t, srv.IsServerOnline())
}

func TestDisconnectAndCompaction(t *testing.T) {
	port := 39005
	srv, err := fbserver.NewServer(netconst.IPv4, port, 8)
	require.NoError(t, err)
	require.NoError(t, srv.StartServer())
	require.NoError(t, srv.StartListening())
	t.Cleanup(func() { _ = srv.StopServer() })

	var clients []net.Conn
	for i := 0; i < 3; i++ {
		c, err := net.Dial("tcp4", "127.0.0.1:39005")
		require.NoError(t, err)
		clients = append(clients, c)
		_, err = srv.GetPendingEvents()
		require.NoError(t, err)
		id, err := srv.AcceptClient()
		require.NoError(t, err)
		require.Equal(t, i, id)
	}

	require.NoError(t, clients[1].Close())
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 2, srv.GetCurrentlyConnectedClientsCount())

	fourth, err := net.Dial("tcp4", "127.0.0.1:39005")
	require.NoError(t, err)
	defer fourth.Close()
	_, err = srv.GetPendingEvents()
	require.NoError(t, err)
	id, err := srv.AcceptClient()
	require.NoError(t, err)
	require.Equal(t, 2, id)
}

func TestLocalSocketReplacesStaleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fb.sock")

	stale, err := fbserver.NewUnixServer(path, 4)
	require.NoError(t, err)
	require.NoError(t, stale.StartServer())
	require.NoError(t, stale.StopServer())

	srv, err := fbserver.NewUnixServer(path, 4)
	require.NoError(t, err)
	require.NoError(t, srv.StartServer())
	require.NoError(t, srv.StartListening())
	t.Cleanup(func() { _ = srv.StopServer() })

	client, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer client.Close()

	_, err = srv.GetPendingEvents()
	require.NoError(t, err)
	_, err = srv.AcceptClient()
	require.NoError(t, err)
}

func TestSendDataRejectsEmptyPayload(t *testing.T) {
	srv := newRunningServer(t, 2)
	err := srv.SendData(0, nil)
	require.Error(t, err)
}

func TestGetStartDateReflectsOnlineWindow(t *testing.T) {
	srv, err := fbserver.NewServer(netconst.IPv4, 0, 4)
	require.NoError(t, err)
	require.Equal(t, "", srv.GetStartDate())

	require.NoError(t, srv.StartServer())
	require.NoError(t, srv.StartListening())
	require.Equal(t, time.Now().Format("02.01.2006"), srv.GetStartDate())

	require.NoError(t, srv.StopServer())
	require.Equal(t, "", srv.GetStartDate())
}

func TestGetClientIPAddressReportsLocalhostForUnixPeers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fb.sock")

	srv, err := fbserver.NewUnixServer(path, 4)
	require.NoError(t, err)
	require.NoError(t, srv.StartServer())
	require.NoError(t, srv.StartListening())
	t.Cleanup(func() { _ = srv.StopServer() })

	client, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer client.Close()

	_, err = srv.GetPendingEvents()
	require.NoError(t, err)
	id, err := srv.AcceptClient()
	require.NoError(t, err)

	ip, err := srv.GetClientIPAddress(id)
	require.NoError(t, err)
	require.Equal(t, "localhost", ip)
}
