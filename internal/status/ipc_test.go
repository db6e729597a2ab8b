package status_test

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zbynekdrlik/dantetimesync/internal/status"
)

func TestServeGetStatus(t *testing.T) {
	pub := status.NewPublisher(zap.NewNop())
	pub.Update(func() status.Snapshot {
		return status.Snapshot{Mode: "NANO", IsLocked: true, Version: status.Version}
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := status.NewServer(zap.NewNop(), pub, ln)
	go srv.Serve()
	defer srv.Close()

	conn, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("GET_STATUS\n")); err != nil {
		t.Fatal(err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}

	var snap status.Snapshot
	if err := json.Unmarshal([]byte(line), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.Mode != "NANO" || !snap.IsLocked {
		t.Errorf("got %+v, want Mode=NANO IsLocked=true", snap)
	}
}
