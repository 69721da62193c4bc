package main

import (
	"bufio"
	"io"
	"os"

	"golang.org/x/term"
)

const promptPrefix = "You: "

// lineReader yields one user input line at a time.
type lineReader interface {
	ReadLine() (string, error)
	Close() error
}

// newLineReader returns a line-editing terminal when in is a TTY and a plain
// scanner otherwise (pipes, tests).
func newLineReader(in *os.File, out io.Writer) (lineReader, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return &scanReader{sc: bufio.NewScanner(in), out: out}, nil
	}
	rw := struct {
		io.Reader
		io.Writer
	}{in, out}
	return &termReader{fd: fd, t: term.NewTerminal(rw, promptPrefix)}, nil
}

type termReader struct {
	fd int
	t  *term.Terminal
}

// ReadLine puts the terminal in raw mode only while a line is being edited,
// so the agent's own output is printed normally.
func (r *termReader) ReadLine() (string, error) {
	oldState, err := term.MakeRaw(r.fd)
	if err != nil {
		return "", err
	}
	if width, height, err := term.GetSize(r.fd); err == nil {
		_ = r.t.SetSize(width, height)
	}
	line, readErr := r.t.ReadLine()
	if err := term.Restore(r.fd, oldState); err != nil {
		return "", err
	}
	return line, readErr
}

func (r *termReader) Close() error { return nil }

type scanReader struct {
	sc  *bufio.Scanner
	out io.Writer
}

func (r *scanReader) ReadLine() (string, error) {
	_, _ = io.WriteString(r.out, promptPrefix)
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.sc.Text(), nil
}

func (r *scanReader) Close() error { return nil }
