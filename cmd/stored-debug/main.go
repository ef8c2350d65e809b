// Command stored-debug serves the spec.md §4.E debugger protocol over
// TCP, one connection per client, following the teacher's go-flags CLI
// shape from brimstore-valuesstore/main.go.
package main

import (
	"fmt"
	"log"
	"net"
	"os"

	flags "github.com/jessevdk/go-flags"

	"github.com/demcon/stored/debugger"
	"github.com/demcon/stored/internal/demoschema"
	"github.com/demcon/stored/protocol"
)

type optsStruct struct {
	Listen     string `short:"l" long:"listen" description:"Address to listen on" default:":8080"`
	AppName    string `long:"app-name" description:"Application name reported by the 'i' command" default:"stored-debug"`
	AppVersion string `long:"app-version" description:"Application version reported by the 'v' command" default:"0.1"`
	MTU        int    `long:"mtu" description:"Segmentation MTU in bytes" default:"512"`
	ASCII      bool   `long:"ascii" description:"Wrap the stack in AsciiEscape/Terminal framing, for serial-style transports"`
	CRC16      bool   `long:"crc16" description:"Use CRC-16 instead of CRC-8 frame checks"`
	BigEndian  bool   `long:"big-endian" description:"Serve the demo store in big-endian byte order"`
}

var opts optsStruct
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		args = append(args, "-h")
	}
	if _, err := parser.ParseArgs(args); err != nil {
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", opts.Listen)
	if err != nil {
		log.Fatalf("stored-debug: listen: %v", err)
	}
	log.Printf("stored-debug: listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("stored-debug: accept: %v", err)
			continue
		}
		go serve(conn)
	}
}

// debuggerLayer is the top of the stack: a Decode'd request is dispatched
// synchronously and the response is sent straight back down, giving the
// response-before-next-request ordering spec.md §5 requires.
type debuggerLayer struct {
	protocol.Base
	dbg *debugger.Debugger
}

func (d *debuggerLayer) Decode(p []byte) error { return d.Encode(d.dbg.Dispatch(p)) }
func (d *debuggerLayer) Encode(p []byte) error { return d.Down(p) }

func buildStack(conn net.Conn, dbg *debugger.Debugger) (*protocol.NetConn, protocol.Layer) {
	bottom := protocol.NewNetConn(conn)
	layers := []protocol.Layer{bottom}
	if opts.CRC16 {
		layers = append(layers, protocol.NewCrc16())
	} else {
		layers = append(layers, protocol.NewCrc8())
	}
	if opts.ASCII {
		layers = append(layers, protocol.NewAsciiEscape(), protocol.NewTerminal())
	}
	layers = append(layers, protocol.NewSegmentation(opts.MTU))
	layers = append(layers, &debuggerLayer{Base: protocol.NewBase(), dbg: dbg})
	protocol.Chain(layers...)
	return bottom, layers[len(layers)-1]
}

func serve(conn net.Conn) {
	defer conn.Close()

	store, _ := demoschema.Build(opts.BigEndian)
	dbg := debugger.New(opts.AppName, opts.AppVersion)
	dbg.Map("", store.Store)

	bottom, _ := buildStack(conn, dbg)
	if err := bottom.ReadLoop(); err != nil {
		fmt.Fprintf(os.Stderr, "stored-debug: connection %s closed: %v\n", conn.RemoteAddr(), err)
	}
}
