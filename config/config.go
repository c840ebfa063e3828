// Package config handles asmvm.toml tool configuration.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/ezrec/asmvm/translate"
)

var f = translate.From

// FILENAME is the configuration file searched for by FindAndLoad.
const FILENAME = "asmvm.toml"

var (
	ErrConfigRead  = errors.New(f("cannot read configuration"))
	ErrConfigParse = errors.New(f("configuration parse error"))
	ErrConfigKey   = errors.New(f("unknown configuration key"))
	ErrConfigValue = errors.New(f("configuration value invalid"))
)

// ErrConfig locates a configuration error.
type ErrConfig struct {
	Path string
	Err  error
	Info string
}

func (err *ErrConfig) Error() string {
	text := err.Err.Error()
	if len(err.Info) != 0 {
		text = f("%v: %v", text, err.Info)
	}
	if len(err.Path) != 0 {
		text = f("%v: %v", err.Path, text)
	}
	return text
}

func (err *ErrConfig) Unwrap() error {
	return err.Err
}

// Config is the asmvm.toml configuration.
type Config struct {
	VM   VM   `toml:"vm"`
	Repl Repl `toml:"repl"`
	Log  Log  `toml:"log"`

	// Path of the loaded file, empty for defaults.
	Path string `toml:"-"`
}

// VM configures program execution.
type VM struct {
	Budget     int  `toml:"budget"`     // Maximum instructions per run, 0 is unlimited.
	Permissive bool `toml:"permissive"` // Use the try-order operand grammar.
}

// Repl configures the interactive shell.
type Repl struct {
	Prompt  string `toml:"prompt"`
	History int    `toml:"history"` // Maximum remembered commands.
}

// Log configures logging.
type Log struct {
	Verbose bool `toml:"verbose"`
}

// Default returns the built in configuration.
func Default() *Config {
	return &Config{
		VM: VM{
			Budget: 1_000_000,
		},
		Repl: Repl{
			Prompt:  "-> ",
			History: 1000,
		},
	}
}

// Decode parses TOML text over the defaults.
func Decode(text string) (cfg *Config, err error) {
	cfg = Default()

	md, err := toml.Decode(text, cfg)
	if err != nil {
		err = &ErrConfig{Err: ErrConfigParse, Info: err.Error()}
		cfg = nil
		return
	}

	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		err = &ErrConfig{Err: ErrConfigKey, Info: undecoded[0].String()}
		cfg = nil
		return
	}

	err = cfg.Validate()
	if err != nil {
		cfg = nil
		return
	}

	return
}

// Validate checks value ranges.
func (cfg *Config) Validate() (err error) {
	switch {
	case cfg.VM.Budget < 0:
		err = &ErrConfig{Path: cfg.Path, Err: ErrConfigValue, Info: "vm.budget"}
	case cfg.Repl.History < 0:
		err = &ErrConfig{Path: cfg.Path, Err: ErrConfigValue, Info: "repl.history"}
	}
	return
}

// Load parses the configuration file at path.
func Load(path string) (cfg *Config, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = &ErrConfig{Path: path, Err: ErrConfigRead, Info: err.Error()}
		return
	}

	cfg, err = Decode(string(data))
	if err != nil {
		var cerr *ErrConfig
		if errors.As(err, &cerr) {
			cerr.Path = path
		}
		return
	}

	cfg.Path = path

	return
}

// FindAndLoad walks up from dir to find an asmvm.toml file, then loads it.
// The defaults are returned if no file is found.
func FindAndLoad(dir string) (cfg *Config, err error) {
	dir, err = filepath.Abs(dir)
	if err != nil {
		return
	}

	for {
		path := filepath.Join(dir, FILENAME)
		if _, serr := os.Stat(path); serr == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			cfg = Default()
			return
		}
		dir = parent
	}
}
