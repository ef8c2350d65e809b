// Command stored-syncd runs a spec.md §4.F Synchronizer daemon: it
// listens for peer connections and can dial out to others, mirroring
// one demo store across every connected peer.
package main

import (
	"fmt"
	"log"
	"net"
	"time"

	"github.com/alecthomas/kong"

	"github.com/demcon/stored/internal/demoschema"
	"github.com/demcon/stored/protocol"
	"github.com/demcon/stored/syncer"
)

var cli struct {
	Listen    string        `help:"Address to listen on for incoming peers." default:":8081"`
	Connect   []string      `help:"Peer addresses to dial and sync from."`
	Interval  time.Duration `help:"How often to process and emit pending updates." default:"200ms"`
	Stats     bool          `help:"Periodically print extended synchronizer stats." default:"false"`
	BigEndian bool          `help:"Serve the demo store in big-endian byte order." default:"false"`
}

func main() {
	kong.Parse(&cli)

	store, _ := demoschema.Build(cli.BigEndian)
	sync := syncer.NewSynchronizer()
	sync.Map(store)

	ln, err := net.Listen("tcp", cli.Listen)
	if err != nil {
		log.Fatalf("stored-syncd: listen: %v", err)
	}
	log.Printf("stored-syncd: listening on %s", ln.Addr())

	go acceptLoop(ln, sync)
	for _, addr := range cli.Connect {
		go dialLoop(addr, sync, store)
	}

	ticker := time.NewTicker(cli.Interval)
	defer ticker.Stop()
	for range ticker.C {
		sync.Process(store)
		if cli.Stats {
			fmt.Println(sync.Stats(true))
		}
	}
}

func acceptLoop(ln net.Listener, sync *syncer.Synchronizer) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("stored-syncd: accept: %v", err)
			continue
		}
		go handleConn(conn, sync)
	}
}

func dialLoop(addr string, sync *syncer.Synchronizer, store *syncer.SynchronizableStore) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		log.Printf("stored-syncd: dial %s: %v", addr, err)
		return
	}
	bottom, syncConn := buildStack(conn, sync)
	if err := syncConn.SyncFrom(store); err != nil {
		log.Printf("stored-syncd: sync_from %s: %v", addr, err)
	}
	if err := bottom.ReadLoop(); err != nil {
		log.Printf("stored-syncd: connection to %s closed: %v", addr, err)
	}
}

func handleConn(conn net.Conn, sync *syncer.Synchronizer) {
	defer conn.Close()
	bottom, _ := buildStack(conn, sync)
	if err := bottom.ReadLoop(); err != nil {
		log.Printf("stored-syncd: connection from %s closed: %v", conn.RemoteAddr(), err)
	}
}

func buildStack(conn net.Conn, sync *syncer.Synchronizer) (*protocol.NetConn, *syncer.SyncConnection) {
	bottom := protocol.NewNetConn(conn)
	crc := protocol.NewCrc16()
	seg := protocol.NewSegmentation(1024)
	protocol.Chain(bottom, crc, seg)
	return bottom, sync.Connect(seg)
}
