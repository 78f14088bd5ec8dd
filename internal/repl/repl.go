// Package repl is an interactive Lua prompt attached to a running host.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
	"golang.org/x/term"

	"blockengine/internal/host"
)

const (
	promptMain = "> "
	promptCont = ">> "
	banner     = "BlockEngine REPL. =expr prints a value; :step, :run, :quit."
)

// Session evaluates chunks against a host. Globals set at the prompt
// persist between chunks but stay out of the shared script globals.
type Session struct {
	Host *host.Host
	Out  io.Writer
	env  *lua.LTable
	n    int
}

func NewSession(h *host.Host, out io.Writer) *Session {
	return &Session{Host: h, Out: out, env: h.Runtime.NewEnv()}
}

// Incomplete reports whether src is a prefix of a valid chunk, so the
// prompt should keep reading.
func Incomplete(src string) bool {
	_, err := parse.Parse(strings.NewReader(expand(src)), "repl")
	var pe *parse.Error
	return errors.As(err, &pe) && pe.Pos.Line == parse.EOF
}

func expand(src string) string {
	if rest, ok := strings.CutPrefix(strings.TrimSpace(src), "="); ok {
		return "print(" + rest + ")"
	}
	return src
}

// Eval runs one chunk as a task and steps the scheduler once.
func (s *Session) Eval(src string) error {
	s.n++
	rt := s.Host.Runtime
	fn, err := rt.Compile(fmt.Sprintf("stdin:%d", s.n), expand(src), s.env)
	if err != nil {
		return err
	}
	t := rt.Sched.Run(fn, "repl")
	s.Host.Step()
	return t.Err
}

// Command handles a :command line. It reports false for :quit.
func (s *Session) Command(ctx context.Context, line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case ":quit", ":q":
		return false
	case ":step":
		s.Host.Step()
	case ":run":
		if err := s.Host.RunToIdle(ctx); err != nil {
			fmt.Fprintln(s.Out, err)
		}
	case ":tasks":
		for _, t := range s.Host.Runtime.Sched.Tasks() {
			fmt.Fprintf(s.Out, "#%d %s wakes at %.3f\n", t.ID, t.Label, t.WakeTime)
		}
	default:
		fmt.Fprintln(s.Out, "unknown command. Type :quit to exit.")
	}
	return true
}

type lineReader interface {
	Prompt(prompt string) (string, error)
}

type plainReader struct {
	sc  *bufio.Scanner
	out io.Writer
}

func (r *plainReader) Prompt(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.sc.Text(), nil
}

// Run reads chunks until EOF or :quit. A terminal on in gets line editing
// and history; anything else is read line by line.
func Run(ctx context.Context, h *host.Host, in *os.File, out io.Writer, historyPath string) error {
	var lr lineReader
	if term.IsTerminal(int(in.Fd())) {
		ln := liner.NewLiner()
		defer ln.Close()
		ln.SetCtrlCAborts(true)
		if historyPath != "" {
			if f, err := os.Open(historyPath); err == nil {
				_, _ = ln.ReadHistory(f)
				_ = f.Close()
			}
			defer func() {
				if f, err := os.Create(historyPath); err == nil {
					_, _ = ln.WriteHistory(f)
					_ = f.Close()
				}
			}()
		}
		lr = &history{State: ln}
	} else {
		lr = &plainReader{sc: bufio.NewScanner(in), out: io.Discard}
	}
	fmt.Fprintln(out, banner)
	return Loop(ctx, NewSession(h, out), lr)
}

type history struct {
	*liner.State
}

// Loop drives a session from any line source.
func Loop(ctx context.Context, s *Session, lr lineReader) error {
	for ctx.Err() == nil {
		code, err := readChunk(lr)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return nil
		}
		if err != nil {
			return err
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ":") {
			if !s.Command(ctx, trimmed) {
				return nil
			}
			continue
		}
		if err := s.Eval(code); err != nil {
			fmt.Fprintln(s.Out, err)
		}
		if h, ok := lr.(*history); ok {
			h.AppendHistory(strings.ReplaceAll(code, "\n", " "))
		}
	}
	return ctx.Err()
}

func readChunk(lr lineReader) (string, error) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := lr.Prompt(prompt)
		if err != nil {
			if b.Len() > 0 && errors.Is(err, io.EOF) {
				return b.String(), nil
			}
			return "", err
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if strings.HasPrefix(strings.TrimSpace(b.String()), ":") || !Incomplete(b.String()) {
			return b.String(), nil
		}
	}
}
