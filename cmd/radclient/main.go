package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vitalvas/radiusd/pkg/client"
	"github.com/vitalvas/radiusd/pkg/crypto"
	"github.com/vitalvas/radiusd/pkg/dictionary"
	"github.com/vitalvas/radiusd/pkg/log"
	"github.com/vitalvas/radiusd/pkg/packet"
)

func parseAttributes(scanner *bufio.Scanner) (map[string]interface{}, error) {
	attributes := make(map[string]interface{})

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid attribute format: %q (expected 'Name = value')", line)
		}

		name := strings.TrimSpace(parts[0])
		valueStr := strings.TrimSpace(parts[1])

		var value interface{}
		if num, err := strconv.ParseUint(valueStr, 10, 32); err == nil {
			value = uint32(num)
		} else {
			value = valueStr
		}

		attributes[name] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}

	return attributes, nil
}

// convertToCHAP replaces User-Password with CHAP-Password over a fresh
// CHAP-Challenge.
func convertToCHAP(pkt *packet.Packet) error {
	password, err := pkt.Password()
	if err != nil {
		return err
	}

	challenge, err := crypto.NewCHAPChallenge(crypto.CHAPChallengeLength)
	if err != nil {
		return err
	}

	pkt.RemoveAttributes(packet.AttrUserPassword)
	pkt.AddAttribute(packet.NewAttribute(packet.AttrCHAPChallenge, challenge))
	pkt.AddAttribute(packet.NewAttribute(packet.AttrCHAPPassword, crypto.CHAPPassword(pkt.Identifier, password, challenge)))
	return nil
}

func printReply(w io.Writer, resp *packet.Packet) {
	fmt.Fprintf(w, "Received %s id=%d\n", resp.Code, resp.Identifier)

	lines := make([]string, 0, len(resp.Attributes))
	for _, attr := range resp.Attributes {
		lines = append(lines, fmt.Sprintf("\t%s = %s", resp.AttributeName(attr.Type), resp.FormatAttribute(attr)))
	}
	sort.Stable(sort.StringSlice(lines))

	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

func main() {
	server := flag.String("server", "", "RADIUS server address (host:port, default port 1812 or 1813 with -acct)")
	secret := flag.String("secret", "testing123", "Shared secret")
	acct := flag.Bool("acct", false, "Send Accounting-Request instead of Access-Request")
	dictPath := flag.String("dictionary", "", "Extra YAML dictionary file")
	timeout := flag.Duration("timeout", client.DefaultTimeout, "Time to wait for each reply")
	retries := flag.Int("retries", client.DefaultRetries, "Retransmissions after the first attempt")
	chap := flag.Bool("chap", false, "Send User-Password as CHAP-Password")
	sign := flag.Bool("message-authenticator", false, "Add a Message-Authenticator to the request")
	verbose := flag.Bool("v", false, "Log retransmissions and ignored replies")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -server <host[:port]> [-acct] [-secret <secret>]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nAttributes are read from stdin, one per line in format:\n")
		fmt.Fprintf(os.Stderr, "  Attribute-Name = value\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  printf 'User-Name = alice\\nUser-Password = letmein\\n' | %s -server 127.0.0.1\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  printf 'Acct-Status-Type = 1\\nAcct-Session-Id = s1\\n' | %s -server 127.0.0.1 -acct\n", os.Args[0])
	}

	flag.Parse()

	if *server == "" {
		fmt.Fprintf(os.Stderr, "Error: -server is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if !strings.Contains(*server, ":") {
		if *acct {
			*server += ":1813"
		} else {
			*server += ":1812"
		}
	}

	logger := log.NewLoggerWithLevel("warn")
	if *verbose {
		logger.SetLevel("debug")
	}

	var dict *dictionary.Dictionary
	var err error
	if *dictPath != "" {
		dict, err = dictionary.LoadFile(*dictPath)
	} else {
		dict, err = dictionary.NewDefault()
	}
	if err != nil {
		logger.Fatalf("Failed to load dictionary: %v", err)
	}

	attributes, err := parseAttributes(bufio.NewScanner(os.Stdin))
	if err != nil {
		logger.Fatalf("Failed to parse attributes: %v", err)
	}

	if len(attributes) == 0 {
		logger.Fatal("Error: No attributes provided")
	}

	cl, err := client.New(client.Config{
		Addr:                 *server,
		Secret:               []byte(*secret),
		Dictionary:           dict,
		Timeout:              *timeout,
		Retries:              retries,
		MessageAuthenticator: *sign,
		Logger:               logger,
	})
	if err != nil {
		logger.Fatalf("Failed to create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(max(*retries, 0)+1)*(*timeout)+time.Second)
	defer cancel()

	code := packet.CodeAccessRequest
	if *acct {
		code = packet.CodeAccountingRequest
	}

	req, err := cl.NewPacket(code, attributes)
	if err != nil {
		logger.Fatalf("Failed to build request: %v", err)
	}

	if *chap {
		if err := convertToCHAP(req); err != nil {
			logger.Fatalf("Failed to build CHAP request: %v", err)
		}
	}

	resp, err := cl.Exchange(ctx, req)
	if err != nil {
		logger.Fatalf("Request failed: %v", err)
	}

	printReply(os.Stdout, resp)

	if resp.Code == packet.CodeAccessAccept || resp.Code == packet.CodeAccountingResponse {
		os.Exit(0)
	}
	os.Exit(1)
}
