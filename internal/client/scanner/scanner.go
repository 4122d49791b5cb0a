// Package scanner tells card reader input apart from a person typing.
//
// Keyboard-wedge readers type the chip id much faster than a person can and
// finish with Enter. Buffer is a small state machine over keystrokes that only
// yields a chip when every key of the line arrived within MaxKeyGap of the
// previous one.
package scanner

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"
)

const (
	DefaultMaxKeyGap   = 50 * time.Millisecond
	DefaultMinLength   = 4
	DefaultIdleTimeout = 500 * time.Millisecond
)

type State int

const (
	Empty State = iota
	Scanning
	Manual
)

func (s State) String() string {
	switch s {
	case Scanning:
		return "scanning"
	case Manual:
		return "manual"
	}
	return "empty"
}

type Kind int

const (
	Chip Kind = iota
	Typed
)

// Entry is one completed line of input.
type Entry struct {
	Kind Kind
	Text string
}

type Config struct {
	MaxKeyGap   time.Duration
	MinLength   int
	IdleTimeout time.Duration
}

type Buffer struct {
	cfg   Config
	state State
	keys  []rune
	last  time.Time
}

func New(cfg Config) *Buffer {
	if cfg.MaxKeyGap <= 0 {
		cfg.MaxKeyGap = DefaultMaxKeyGap
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultMinLength
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	return &Buffer{cfg: cfg}
}

func (b *Buffer) State() State {
	return b.state
}

// Feed consumes one key pressed at the given time. It returns an entry when
// the key was Enter and the line is worth reporting.
func (b *Buffer) Feed(r rune, at time.Time) (Entry, bool) {
	if b.state != Empty && at.Sub(b.last) > b.cfg.IdleTimeout {
		b.Reset()
	}

	if r == '\n' || r == '\r' {
		return b.complete()
	}

	switch b.state {
	case Empty:
		b.state = Scanning
	case Scanning:
		if at.Sub(b.last) > b.cfg.MaxKeyGap {
			b.state = Manual
		}
	}

	b.keys = append(b.keys, r)
	b.last = at

	return Entry{}, false
}

// Expire resets a buffer that has been idle for IdleTimeout. It reports
// whether anything was dropped.
func (b *Buffer) Expire(at time.Time) bool {
	if b.state == Empty || at.Sub(b.last) < b.cfg.IdleTimeout {
		return false
	}
	b.Reset()
	return true
}

func (b *Buffer) Reset() {
	b.state = Empty
	b.keys = b.keys[:0]
	b.last = time.Time{}
}

func (b *Buffer) complete() (Entry, bool) {
	state, text := b.state, strings.TrimSpace(string(b.keys))
	b.Reset()

	switch {
	case text == "":
		return Entry{}, false
	case state == Scanning && len([]rune(text)) >= b.cfg.MinLength:
		return Entry{Kind: Chip, Text: text}, true
	default:
		return Entry{Kind: Typed, Text: text}, true
	}
}

// Run reads keys from r and sends completed entries until r is exhausted or
// ctx ends. Keys are timed on arrival, so r must deliver them unbuffered
// (a terminal in raw mode, or a reader device) for typing to be told apart.
func Run(ctx context.Context, r io.Reader, cfg Config, out chan<- Entry) error {
	type key struct {
		r  rune
		at time.Time
	}

	keys := make(chan key)
	errc := make(chan error, 1)

	go func() {
		br := bufio.NewReader(r)
		for {
			c, _, err := br.ReadRune()
			if err != nil {
				errc <- err
				return
			}
			select {
			case keys <- key{c, time.Now()}:
			case <-ctx.Done():
				return
			}
		}
	}()

	b := New(cfg)
	idle := time.NewTimer(b.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-errc:
			if err == io.EOF {
				return nil
			}
			return err

		case k := <-keys:
			if e, ok := b.Feed(k.r, k.at); ok {
				select {
				case out <- e:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(b.cfg.IdleTimeout)

		case at := <-idle.C:
			b.Expire(at)
			idle.Reset(b.cfg.IdleTimeout)
		}
	}
}
