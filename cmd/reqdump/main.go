// Command reqdump parses one raw request from a file or stdin, prints what
// the server would make of it and the exact response bytes it would send.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Brownie44l1/pollhttpd/internal/request"
	"github.com/Brownie44l1/pollhttpd/internal/response"
)

func main() {
	var (
		body   = flag.String("body", "", "body for a successful response")
		verify = flag.Bool("verify", false, "read the serialized response back and compare")
		crlf   = flag.Bool("crlf", false, "convert bare LF line endings in the input to CRLF")
	)
	flag.Parse()

	in, err := readInput(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "reqdump: %v\n", err)
		os.Exit(1)
	}
	if *crlf {
		in = toCRLF(in)
	}

	req, outcome := request.Parse(in)
	fmt.Printf("Outcome: %s\n", outcome)
	if req != nil {
		printRequest(req)
		defer req.Release()
	}

	var respBody string
	if outcome == request.OK {
		respBody = *body
	}
	resp, err := response.Build(outcome, respBody)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reqdump: %v\n", err)
		os.Exit(1)
	}
	defer resp.Release()

	out, err := resp.Serialize()
	if err != nil {
		fmt.Fprintf(os.Stderr, "reqdump: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Response")
	fmt.Println(strconv.Quote(string(out)))

	if *verify {
		if err := verifyRoundTrip(resp, out); err != nil {
			fmt.Fprintf(os.Stderr, "reqdump: %v\n", err)
			os.Exit(2)
		}
		fmt.Println("Round trip OK")
	}
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func toCRLF(in []byte) []byte {
	in = bytes.ReplaceAll(in, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(in, []byte("\n"), []byte("\r\n"))
}

func printRequest(req *request.Request) {
	fmt.Println("Request Line")
	fmt.Printf("Method: %s\n", req.Method)
	fmt.Printf("Path: %s\n", req.Path)
	fmt.Printf("Protocol: %s\n", req.Protocol)

	fmt.Println("Headers")
	for _, f := range req.Headers.All() {
		fmt.Printf("%s: %s\n", f.Key, f.Value)
	}

	fmt.Println("Body")
	fmt.Printf("%s\n", strconv.Quote(string(req.Body)))
}

func verifyRoundTrip(resp *response.Response, out []byte) error {
	back, err := response.ReadResponse(out)
	if err != nil {
		return err
	}
	if back.StatusCode != resp.StatusCode || back.Reason != resp.Reason {
		return fmt.Errorf("status mismatch: %d %s != %d %s",
			back.StatusCode, back.Reason, resp.StatusCode, resp.Reason)
	}
	if !bytes.Equal(back.Body, resp.Body) {
		return fmt.Errorf("body mismatch: %q != %q", back.Body, resp.Body)
	}
	if back.Headers.Len() != resp.Headers.Len() {
		return fmt.Errorf("header count mismatch: %d != %d", back.Headers.Len(), resp.Headers.Len())
	}
	return nil
}
