package narration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// CommandEngine speaks by piping text into a local program such as
// "espeak-ng --stdin". Voice, rate and pitch are passed in the environment
// as FLIPSHELF_TTS_VOICE, FLIPSHELF_TTS_RATE and FLIPSHELF_TTS_PITCH.
type CommandEngine struct {
	argv []string
}

// NewCommandEngine parses a whitespace-separated command line.
func NewCommandEngine(command string) (*CommandEngine, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, errors.New("narration: empty command")
	}
	return &CommandEngine{argv: argv}, nil
}

// Name implements Engine.
func (e *CommandEngine) Name() string { return "local" }

// Speak implements Engine. Cancelling ctx kills the process.
func (e *CommandEngine) Speak(ctx context.Context, text string, opts Options) error {
	cmd := exec.CommandContext(ctx, e.argv[0], e.argv[1:]...)
	cmd.Stdin = strings.NewReader(text)
	cmd.Env = append(os.Environ(),
		"FLIPSHELF_TTS_VOICE="+opts.Voice,
		"FLIPSHELF_TTS_RATE="+strconv.FormatFloat(opts.Rate, 'f', -1, 64),
		"FLIPSHELF_TTS_PITCH="+strconv.FormatFloat(opts.Pitch, 'f', -1, 64),
	)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("local tts %s: %w", e.argv[0], err)
	}
	return nil
}

// CommandPlayer plays audio by piping it into a local program such as
// "aplay -q -".
type CommandPlayer struct {
	argv []string
}

// NewCommandPlayer parses a whitespace-separated command line.
func NewCommandPlayer(command string) (*CommandPlayer, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, errors.New("narration: empty player command")
	}
	return &CommandPlayer{argv: argv}, nil
}

// Play implements Player.
func (p *CommandPlayer) Play(ctx context.Context, _ string, audio io.Reader) error {
	cmd := exec.CommandContext(ctx, p.argv[0], p.argv[1:]...)
	cmd.Stdin = audio
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("play audio: %w", err)
	}
	return nil
}
