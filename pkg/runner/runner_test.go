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

package runner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"

	"github.com/lassandro/chip8x/pkg/display"
	"github.com/lassandro/chip8x/pkg/machine"
	"github.com/lassandro/chip8x/pkg/runner"
)

type scriptedInput struct {
	commands []runner.Command
	err      error
}

func (input *scriptedInput) Poll() (runner.Command, error) {
	if input.err != nil {
		return runner.CommandNone, input.err
	}

	if len(input.commands) == 0 {
		return runner.CommandNone, nil
	}

	cmd := input.commands[0]
	input.commands = input.commands[1:]
	return cmd, nil
}

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
	step   time.Duration
}

func (clock *fakeClock) Now() time.Time {
	current := clock.now
	clock.now = clock.now.Add(clock.step)
	return current
}

func (clock *fakeClock) Sleep(duration time.Duration) {
	clock.sleeps = append(clock.sleeps, duration)
}

// Program spins on itself: 1200 JP 0x200
var spin = []byte{0x12, 0x00}

func newRunner(t *testing.T, program []byte, input runner.Input) (*runner.Runner, *display.Headless, *fakeClock) {
	t.Helper()

	logger := log.NewTestLogger(t)
	mc := machine.New(logger)
	assert.NoError(t, mc.LoadBytes(program))

	var headless display.Headless
	clock := &fakeClock{now: time.Unix(0, 0), step: 100 * time.Microsecond}

	r := runner.New(mc, &headless, input, logger, 1000)
	r.Sleep = clock.Sleep
	r.Now = clock.Now

	return r, &headless, clock
}

func TestMaxCycles(t *testing.T) {
	r, headless, clock := newRunner(t, spin, nil)
	r.MaxCycles = 5

	assert.NoError(t, r.Run(context.Background()))
	assert.Equal(t, uint64(5), r.Cycles)
	assert.Equal(t, runner.StateQuit, r.State)
	assert.Equal(t, uint64(5), headless.Presents)

	// 1ms budget minus the 100us each step takes on the fake clock
	assert.Len(t, clock.sleeps, 5)
	for _, sleep := range clock.sleeps {
		assert.Equal(t, 900*time.Microsecond, sleep)
	}
}

func TestNoSleepWhenOverBudget(t *testing.T) {
	r, _, clock := newRunner(t, spin, nil)
	r.MaxCycles = 3
	clock.step = 2 * time.Millisecond

	assert.NoError(t, r.Run(context.Background()))
	assert.Len(t, clock.sleeps, 0)
}

func TestQuitCommand(t *testing.T) {
	input := &scriptedInput{commands: []runner.Command{
		runner.CommandNone, runner.CommandNone, runner.CommandQuit,
	}}
	r, _, _ := newRunner(t, spin, input)

	assert.NoError(t, r.Run(context.Background()))
	assert.Equal(t, uint64(2), r.Cycles)
	assert.Equal(t, runner.StateQuit, r.State)
}

func TestPause(t *testing.T) {
	input := &scriptedInput{commands: []runner.Command{
		runner.CommandTogglePause,
		runner.CommandNone,
		runner.CommandNone,
		runner.CommandTogglePause,
		runner.CommandQuit,
	}}
	r, headless, clock := newRunner(t, spin, input)

	assert.NoError(t, r.Run(context.Background()))

	// Paused iterations sleep the idle interval without stepping
	assert.Equal(t, uint64(1), r.Cycles)
	assert.Equal(t, uint64(1), headless.Presents)
	assert.Equal(t, []time.Duration{
		runner.IdleInterval,
		runner.IdleInterval,
		runner.IdleInterval,
		900 * time.Microsecond,
	}, clock.sleeps)
}

func TestContextCancel(t *testing.T) {
	r, _, _ := newRunner(t, spin, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, runner.StateQuit, r.State)
	assert.Equal(t, uint64(0), r.Cycles)
}

func TestFatalError(t *testing.T) {
	// 00EE RET with an empty stack
	r, _, _ := newRunner(t, []byte{0x00, 0xEE}, nil)

	err := r.Run(context.Background())
	assert.True(t, errors.Is(err, machine.ErrStackUnderflow))
	assert.Equal(t, runner.StateQuit, r.State)
}

func TestInputError(t *testing.T) {
	errInput := errors.New("input closed")
	r, _, _ := newRunner(t, spin, &scriptedInput{err: errInput})

	assert.True(t, errors.Is(r.Run(context.Background()), errInput))
}

func TestDrawPresented(t *testing.T) {
	// A000 LD I, 0x000; D005 DRW V0, V0, 5; 1204 JP 0x204
	program := []byte{0xA0, 0x00, 0xD0, 0x05, 0x12, 0x04}
	r, headless, _ := newRunner(t, program, nil)
	r.MaxCycles = 3

	assert.NoError(t, r.Run(context.Background()))
	assert.Equal(t, uint64(1), headless.Updates)
	assert.Equal(t, machine.ColorForeground, headless.Frame[0])
}

func TestInstructionTime(t *testing.T) {
	r := runner.New(nil, nil, nil, nil, 700)
	assert.Equal(t, time.Second/700, r.InstructionTime())

	r.Hz = 0
	assert.Equal(t, time.Duration(0), r.InstructionTime())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", runner.StateRunning.String())
	assert.Equal(t, "paused", runner.StatePaused.String())
	assert.Equal(t, "quit", runner.StateQuit.String())
}
