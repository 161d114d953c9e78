// Command citl is a small operator CLI for the clinical review server. It
// talks to a running server over HTTP.
//
// Usage:
//
//	citl -server http://localhost:8080 draft CASE-001
//	citl -server http://localhost:8080 submit CASE-001 review.json
//	citl -server http://localhost:8080 finalize CASE-001
//	citl -server http://localhost:8080 status CASE-001
//	citl -server http://localhost:8080 reanalyze CASE-001
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "base URL of the review server")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		usage()
		os.Exit(2)
	}

	client := &http.Client{Timeout: *timeout}
	command, caseID := args[0], args[1]
	base := fmt.Sprintf("%s/api/v1/cases/%s", *serverURL, caseID)

	var err error
	switch command {
	case "draft":
		err = call(client, http.MethodPost, base+"/draft", nil)
	case "submit":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "submit requires a review document file")
			os.Exit(2)
		}
		var doc []byte
		doc, err = os.ReadFile(args[2])
		if err == nil {
			err = call(client, http.MethodPost, base+"/review", doc)
		}
	case "finalize":
		err = call(client, http.MethodPost, base+"/finalize", nil)
	case "status":
		err = call(client, http.MethodGet, base+"/state", nil)
	case "reanalyze":
		err = call(client, http.MethodPost, base+"/reanalysis", nil)
	case "report":
		err = call(client, http.MethodGet, base+"/report", nil)
	case "audit":
		err = call(client, http.MethodGet, base+"/audit", nil)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// call performs the request and pretty-prints the JSON response. Non-2xx
// responses become errors carrying the server's message.
func call(client *http.Client, method, url string, payload []byte) error {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		// Not JSON (e.g. the plain-text summary); print as-is
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: citl [flags] <command> <case-id> [args]

commands:
  draft      CASE-ID            generate a draft report
  submit     CASE-ID FILE.json  submit a review document
  finalize   CASE-ID            finalize the case
  status     CASE-ID            show case state
  reanalyze  CASE-ID            request pipeline reanalysis
  report     CASE-ID            fetch the final report
  audit      CASE-ID            show the audit trail`)
	flag.PrintDefaults()
}
