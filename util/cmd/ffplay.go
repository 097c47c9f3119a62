package cmd

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"syscall"
)

var (
	ErrIdle    = errors.New("nothing is playing")
	ErrPlaying = errors.New("already playing")

	ffplay = func(ctx context.Context, url string) *exec.Cmd {
		return exec.CommandContext(ctx, "ffplay", "-nodisp", "-autoexit", "-loglevel", "error", url)
	}
)

// Available reports whether the player binary can be found
func Available() error {
	if _, err := exec.LookPath("ffplay"); err != nil {
		return errors.New("ffplay not found: install ffmpeg to play tracks")
	}
	return nil
}

// FFPlay streams a single track at a time through ffplay
type FFPlay struct {
	lock    sync.Mutex
	cmd     *exec.Cmd
	done    chan struct{}
	err     error
	stopped bool
}

func (p *FFPlay) Play(ctx context.Context, url string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.running() {
		return ErrPlaying
	}

	var (
		output bytes.Buffer
		cmd    = ffplay(ctx, url)
		done   = make(chan struct{})
	)
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Start(); err != nil {
		return err
	}
	p.cmd, p.done, p.err, p.stopped = cmd, done, nil, false
	go func() {
		err := cmd.Wait()
		p.lock.Lock()
		defer p.lock.Unlock()
		if err != nil && !p.stopped && ctx.Err() == nil {
			if message := strings.TrimSpace(output.String()); message != "" {
				err = errors.New(message)
			}
			p.err = err
		}
		close(done)
	}()
	return nil
}

// Wait blocks until the track ends or gets stopped
func (p *FFPlay) Wait() error {
	p.lock.Lock()
	done := p.done
	p.lock.Unlock()
	if done == nil {
		return ErrIdle
	}
	<-done
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.err
}

func (p *FFPlay) Pause() error {
	return p.signal(syscall.SIGSTOP)
}

func (p *FFPlay) Resume() error {
	return p.signal(syscall.SIGCONT)
}

func (p *FFPlay) Stop() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.running() {
		return ErrIdle
	}
	p.stopped = true
	return p.cmd.Process.Kill()
}

func (p *FFPlay) signal(signal syscall.Signal) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.running() {
		return ErrIdle
	}
	return p.cmd.Process.Signal(signal)
}

func (p *FFPlay) running() bool {
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}
