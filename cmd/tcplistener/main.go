package main

import (
	"errors"
	"fetchgate/internal/request"
	"fetchgate/internal/response"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/pflag"
)

// tcplistener prints every request line it receives and echoes it back, which
// is handy for checking what a client actually sends before pointing it at the
// gateway.
func main() {
	port := pflag.IntP("port", "p", 42069, "port to listen on")
	pflag.Parse()

	addr := fmt.Sprintf(":%d", *port)
	tcp, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Println("ERROR: failed to open.\n", err.Error())
		os.Exit(1)
	}
	defer tcp.Close()

	fmt.Println("Listening for TCP traffic on", addr)
	for {
		conn, err := tcp.Accept()
		if err != nil {
			fmt.Println("ERROR: failed to accept.\n", err)
			os.Exit(1)
		}
		go handleConn(conn)
	}
}

func handleConn(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second)) // optional safety

	req, err := request.RequestFromReader(conn)
	if req == nil {
		fmt.Println("ERROR: failed to read request:", err)
		return
	}

	resp := &response.Response{Status: response.OK, Reason: "OK", Body: req.Raw}
	if errors.Is(err, request.ErrMalformedRequestLine) {
		fmt.Printf("Malformed request line: %q\n", req.Line)
		resp = &response.Response{Status: response.BAD_REQUEST, Reason: "Invalid request"}
	} else {
		fmt.Printf("Request line:\n- Method: %s\n- Target: %s\n- Version: %s\n",
			req.RequestLine.Method, req.RequestLine.RequestTarget, req.RequestLine.HTTPVersion)
	}

	if _, err := resp.WriteTo(conn); err != nil {
		fmt.Println("ERROR: failed to write response:", err)
	}
}
