// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

package runner

import (
	"context"
	"time"

	"github.com/retroenv/retrogolib/log"

	"github.com/lassandro/chip8x/pkg/display"
	"github.com/lassandro/chip8x/pkg/machine"
)

type State uint8

const (
	StateRunning State = iota
	StatePaused
	StateQuit
)

func (state State) String() string {
	switch state {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateQuit:
		return "quit"
	}
	return "<invalid>"
}

type Command uint8

const (
	CommandNone Command = iota
	CommandTogglePause
	CommandQuit
)

// Input is polled once per loop iteration and must not block.
type Input interface {
	Poll() (Command, error)
}

// IdleInterval is how long a paused runner sleeps between input polls.
const IdleInterval = 10 * time.Millisecond

type Runner struct {
	Machine  *machine.Machine
	Renderer display.Renderer
	Input    Input
	Logger   *log.Logger

	Hz        int
	MaxCycles uint64
	Cycles    uint64
	State     State

	Sleep func(time.Duration)
	Now   func() time.Time
}

func New(mc *machine.Machine, renderer display.Renderer, input Input, logger *log.Logger, hz int) *Runner {
	return &Runner{
		Machine:  mc,
		Renderer: renderer,
		Input:    input,
		Logger:   logger,
		Hz:       hz,
		State:    StateRunning,
		Sleep:    time.Sleep,
		Now:      time.Now,
	}
}

// InstructionTime is the time budget of a single cycle.
func (r *Runner) InstructionTime() time.Duration {
	if r.Hz <= 0 {
		return 0
	}

	return time.Second / time.Duration(r.Hz)
}

func (r *Runner) logger() *log.Logger {
	if r.Logger == nil {
		return r.Machine.Logger
	}

	return r.Logger
}

func (r *Runner) sleep(duration time.Duration) {
	if r.Sleep != nil {
		r.Sleep(duration)
	} else {
		time.Sleep(duration)
	}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}

	return time.Now()
}

func (r *Runner) handle(cmd Command) {
	previous := r.State

	switch cmd {
	case CommandTogglePause:
		if r.State == StateRunning {
			r.State = StatePaused
		} else if r.State == StatePaused {
			r.State = StateRunning
		}
	case CommandQuit:
		r.State = StateQuit
	}

	if previous != r.State && r.logger() != nil {
		r.logger().Info("Run state changed",
			log.Stringer("from", previous),
			log.Stringer("to", r.State),
		)
	}
}

// Run executes cycles paced to Hz until the input requests Quit, the context
// is cancelled, MaxCycles is reached or the machine reports a fatal error.
func (r *Runner) Run(ctx context.Context) error {
	budget := r.InstructionTime()

	for r.State != StateQuit {
		select {
		case <-ctx.Done():
			r.handle(CommandQuit)
			return ctx.Err()
		default:
		}

		if r.Input != nil {
			cmd, err := r.Input.Poll()

			if err != nil {
				return err
			}

			r.handle(cmd)

			if r.State == StateQuit {
				break
			}
		}

		if r.State == StatePaused {
			r.sleep(IdleInterval)
			continue
		}

		start := r.now()

		if err := r.Machine.Step(); err != nil {
			r.State = StateQuit
			return err
		}

		r.Cycles++

		if remaining := budget - r.now().Sub(start); remaining > 0 {
			r.sleep(remaining)
		}

		if r.Renderer != nil {
			if err := r.Renderer.Present(r.Machine.State.Frame[:], r.Machine.State.Dirty); err != nil {
				r.State = StateQuit
				return err
			}
		}

		if r.MaxCycles > 0 && r.Cycles >= r.MaxCycles {
			r.handle(CommandQuit)
		}
	}

	return nil
}
