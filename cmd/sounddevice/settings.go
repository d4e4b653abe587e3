// ABOUTME: Command line and config file settings for the sounddevice tool
// ABOUTME: Defaults are overridden by the ini file, which flags override in turn
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vaughan0/go-ini"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio/resample"
)

const maxLogFiles = 10

// Commands
const (
	cmdInfo   = "info"
	cmdTone   = "tone"
	cmdPlay   = "play"
	cmdRecord = "record"
)

type settings struct {
	Command string
	File    string // audio file for play and record

	// device section
	Backend      string
	Device       string
	SampleRate   int
	PeriodFrames int
	Channels     int
	Bits         int
	Quality      string
	PollInterval time.Duration

	// playback section
	Frequency float64
	Gain      float64
	Loop      bool
	Duration  time.Duration

	// monitor section
	ListenMetrics string
	TUI           bool

	// log section
	LogFile    string
	DebugLevel string

	ShowVersion bool
}

func defaultSettings() *settings {
	return &settings{
		Command:    cmdInfo,
		Backend:    "miniaudio",
		Bits:       16,
		Quality:    "best",
		Frequency:  440,
		Gain:       0.5,
		DebugLevel: "info",
	}
}

var errUsage = errors.New("usage: sounddevice [flags] info|tone|play FILE|record FILE")

// obtainSettings parses args (without the program name)
func obtainSettings(args []string, stderr io.Writer) (*settings, error) {
	s := defaultSettings()

	fs := flag.NewFlagSet("sounddevice", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgFile := fs.String("cfg", "", "config file (ini)")
	fs.StringVar(&s.Backend, "backend", s.Backend, "audio backend: miniaudio, portaudio, oto or fake")
	fs.StringVar(&s.Device, "device", s.Device, "device ID (empty for the default device)")
	fs.IntVar(&s.SampleRate, "rate", s.SampleRate, "stream sample rate (0 for native)")
	fs.IntVar(&s.PeriodFrames, "period", s.PeriodFrames, "frames per callback (0 for native)")
	fs.IntVar(&s.Channels, "channels", s.Channels, "recording channels (0 for native)")
	fs.IntVar(&s.Bits, "bits", s.Bits, "recording bit depth: 16, 24 or 32 (float)")
	fs.StringVar(&s.Quality, "quality", s.Quality, "resampler quality: best or linear")
	fs.DurationVar(&s.PollInterval, "poll", s.PollInterval, "device change poll interval")
	fs.Float64Var(&s.Frequency, "freq", s.Frequency, "tone frequency in Hz")
	fs.Float64Var(&s.Gain, "gain", s.Gain, "tone gain between 0 and 1")
	fs.BoolVar(&s.Loop, "loop", s.Loop, "loop the played file")
	fs.DurationVar(&s.Duration, "duration", s.Duration, "stop after this long (0 to run until interrupted)")
	fs.StringVar(&s.ListenMetrics, "listen-metrics", s.ListenMetrics, "address for /metrics and /status")
	fs.BoolVar(&s.TUI, "tui", s.TUI, "show the device monitor")
	fs.StringVar(&s.LogFile, "log-file", s.LogFile, "log file path (rotated)")
	fs.StringVar(&s.DebugLevel, "debuglevel", s.DebugLevel, "log level: trace, debug, info, warn, error")
	fs.BoolVar(&s.ShowVersion, "version", false, "show version")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *cfgFile != "" {
		// Flags set on the command line win over the file.
		set := make(map[string]bool)
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if err := s.loadFile(*cfgFile, set); err != nil {
			return nil, err
		}
	}

	if s.ShowVersion {
		return s, nil
	}

	rest := fs.Args()
	if len(rest) > 0 {
		s.Command = rest[0]
	}
	switch s.Command {
	case cmdInfo, cmdTone:
	case cmdPlay, cmdRecord:
		if len(rest) < 2 {
			return nil, fmt.Errorf("%s needs a file: %w", s.Command, errUsage)
		}
		s.File = rest[1]
	default:
		return nil, fmt.Errorf("unknown command %q: %w", s.Command, errUsage)
	}

	return s, s.validate()
}

func (s *settings) loadFile(filename string, set map[string]bool) error {
	cfg, err := ini.LoadFile(filename)
	if err != nil {
		return fmt.Errorf("unable to load config file: %w", err)
	}

	var parseErr error
	get := func(flagName string, dst *string, section, field string) {
		if v, ok := cfg.Get(section, field); ok && !set[flagName] {
			*dst = v
		}
	}
	getInt := func(flagName string, dst *int, section, field string) {
		if v, ok := cfg.Get(section, field); ok && !set[flagName] {
			i, err := strconv.Atoi(v)
			if err != nil {
				parseErr = errors.Join(parseErr, fmt.Errorf("%s.%s: %w", section, field, err))
				return
			}
			*dst = i
		}
	}
	getFloat := func(flagName string, dst *float64, section, field string) {
		if v, ok := cfg.Get(section, field); ok && !set[flagName] {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				parseErr = errors.Join(parseErr, fmt.Errorf("%s.%s: %w", section, field, err))
				return
			}
			*dst = f
		}
	}
	getBool := func(flagName string, dst *bool, section, field string) {
		if v, ok := cfg.Get(section, field); ok && !set[flagName] {
			b, err := strconv.ParseBool(v)
			if err != nil {
				parseErr = errors.Join(parseErr, fmt.Errorf("%s.%s: %w", section, field, err))
				return
			}
			*dst = b
		}
	}
	getDuration := func(flagName string, dst *time.Duration, section, field string) {
		if v, ok := cfg.Get(section, field); ok && !set[flagName] {
			d, err := time.ParseDuration(v)
			if err != nil {
				parseErr = errors.Join(parseErr, fmt.Errorf("%s.%s: %w", section, field, err))
				return
			}
			*dst = d
		}
	}

	get("backend", &s.Backend, "device", "backend")
	get("device", &s.Device, "device", "id")
	getInt("rate", &s.SampleRate, "device", "samplerate")
	getInt("period", &s.PeriodFrames, "device", "periodframes")
	getInt("channels", &s.Channels, "device", "channels")
	getInt("bits", &s.Bits, "device", "bits")
	get("quality", &s.Quality, "device", "quality")
	getDuration("poll", &s.PollInterval, "device", "pollinterval")
	getFloat("freq", &s.Frequency, "playback", "frequency")
	getFloat("gain", &s.Gain, "playback", "gain")
	getBool("loop", &s.Loop, "playback", "loop")
	getDuration("duration", &s.Duration, "playback", "duration")
	get("listen-metrics", &s.ListenMetrics, "monitor", "listen")
	getBool("tui", &s.TUI, "monitor", "tui")
	get("log-file", &s.LogFile, "log", "logfile")
	get("debuglevel", &s.DebugLevel, "log", "debuglevel")

	if s.LogFile != "" && !filepath.IsAbs(s.LogFile) {
		s.LogFile = filepath.Join(filepath.Dir(filename), s.LogFile)
	}
	return parseErr
}

func (s *settings) validate() error {
	if _, err := resample.ParseQuality(s.Quality); err != nil {
		return err
	}
	switch s.Bits {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth %d", s.Bits)
	}
	if s.SampleRate < 0 || s.PeriodFrames < 0 || s.Channels < 0 {
		return errors.New("rate, period and channels must not be negative")
	}
	if s.Frequency <= 0 {
		return fmt.Errorf("invalid tone frequency %v", s.Frequency)
	}
	return nil
}

func printVersion(w io.Writer, version string) {
	fmt.Fprintln(w, version)
}
