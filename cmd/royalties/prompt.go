package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/bitfsorg/royalties-go/wallet"
)

// EnvPassword supplies the keyfile password non-interactively.
const EnvPassword = "ROYALTY_PASSWORD"

var (
	stdinOnce sync.Once
	stdin     *bufio.Reader
)

func stdinReader() *bufio.Reader {
	stdinOnce.Do(func() { stdin = bufio.NewReader(os.Stdin) })
	return stdin
}

// readPassword reads a password from EnvPassword, the terminal without
// echo, or a line of stdin when it is not a terminal.
func readPassword(prompt string) (string, error) {
	if v := os.Getenv(EnvPassword); v != "" {
		return v, nil
	}
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return readLine("")
}

func readLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(os.Stderr, prompt)
	}
	line, err := stdinReader().ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// promptApprove shows a transaction and asks for confirmation.
func promptApprove(ctx context.Context, a wallet.Approval) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := "(contract creation)"
	if a.To != nil {
		to = a.To.Hex()
	}
	fmt.Fprintf(os.Stderr, "\nSign transaction?\n  from:     %s\n  to:       %s\n  chain id: %s\n  nonce:    %d\n  calldata: %d bytes\n",
		a.From.Hex(), to, a.ChainID, a.Nonce, len(a.Data))

	answer, err := readLine("Approve [y/N]: ")
	if err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	}
	return errors.New("declined at prompt")
}
