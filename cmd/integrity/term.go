package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"integrity-go/internal/integrity"

	"golang.org/x/term"
)

// promptPassphrase reads a passphrase from the terminal without echo.
func promptPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("a passphrase is required: run from an interactive terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

// promptNewPassphrase asks twice and requires both entries to match.
func promptNewPassphrase() (string, error) {
	first, err := promptPassphrase("New passphrase: ")
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", errors.New("passphrase must not be empty")
	}
	second, err := promptPassphrase("Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passphrases do not match")
	}
	return first, nil
}

// dotProgress prints a dot every dotEvery files while a scan runs. It
// stays silent unless w is a terminal.
type dotProgress struct {
	mu      sync.Mutex
	w       io.Writer
	enabled bool
	files   int
	printed bool
}

const dotEvery = 1000

func newDotProgress(f *os.File) *dotProgress {
	return &dotProgress{w: f, enabled: term.IsTerminal(int(f.Fd()))}
}

func (p *dotProgress) FileProcessed(string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files++
	if p.enabled && p.files%dotEvery == 0 {
		fmt.Fprint(p.w, ".")
		p.printed = true
	}
}

func (p *dotProgress) RootFinished(string, int) {}

// Done ends the line of dots, if any were printed.
func (p *dotProgress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed {
		fmt.Fprintln(p.w)
		p.printed = false
	}
}

var _ integrity.Progress = (*dotProgress)(nil)
