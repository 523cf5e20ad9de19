package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	cerrors "github.com/orizon-lang/cpu0isel/internal/errors"
	"github.com/orizon-lang/cpu0isel/internal/target"
)

// Version information for the lowering tools
const (
	Version   = "0.3.0"
	BuildDate = "2026-10-01"
	CommitSHA = "unknown" // Will be set during build
)

// VersionInfo contains version and build information
type VersionInfo struct {
	Version    string `json:"version"`
	BuildDate  string `json:"build_date"`
	CommitSHA  string `json:"commit_sha"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
	Arch       string `json:"arch"`
	ABIVersion string `json:"abi_version"`
}

// GetVersionInfo returns structured version information
func GetVersionInfo() *VersionInfo {
	return &VersionInfo{
		Version:    Version,
		BuildDate:  BuildDate,
		CommitSHA:  CommitSHA,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS,
		Arch:       runtime.GOARCH,
		ABIVersion: target.ABIVersion,
	}
}

// PrintVersion writes version information as text or JSON.
func PrintVersion(w io.Writer, toolName string, jsonOutput bool) {
	info := GetVersionInfo()

	if jsonOutput {
		data, err := json.MarshalIndent(map[string]interface{}{
			"tool":         toolName,
			"version_info": info,
		}, "", "  ")
		if err == nil {
			fmt.Fprintln(w, string(data))
			return
		}
		// Fallback to plain text if JSON marshaling fails
		fmt.Fprintf(os.Stderr, "Error: Failed to marshal version info to JSON: %v\n", err)
	}

	fmt.Fprintf(w, "%s v%s\n", toolName, info.Version)
	fmt.Fprintf(w, "Build Date: %s\n", info.BuildDate)
	if info.CommitSHA != "unknown" && info.CommitSHA != "" {
		fmt.Fprintf(w, "Commit: %s\n", info.CommitSHA)
	}
	fmt.Fprintf(w, "Cpu0 ABI: %s\n", info.ABIVersion)
	fmt.Fprintf(w, "Go Version: %s\n", info.GoVersion)
	fmt.Fprintf(w, "Platform: %s/%s\n", info.Platform, info.Arch)
}

// Logger provides leveled logging for CLI tools. It satisfies the tracer
// interface of the lowering pass.
type Logger struct {
	Verbose   bool
	DebugMode bool

	out io.Writer
}

// NewLogger creates a logger writing to stderr.
func NewLogger(verbose, debug bool) *Logger {
	return &Logger{Verbose: verbose, DebugMode: debug, out: os.Stderr}
}

// SetOutput redirects log lines to w.
func (l *Logger) SetOutput(w io.Writer) { l.out = w }

func (l *Logger) log(level, format string, args ...interface{}) {
	fmt.Fprintf(l.out, "[%s] %s: %s\n", level, time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.Verbose {
		l.log("INFO", format, args...)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.DebugMode {
		l.log("DEBUG", format, args...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) { l.log("WARN", format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) { l.log("ERROR", format, args...) }

// Config is the cpu0-lower configuration file. Command line flags override it.
type Config struct {
	Verbose bool `json:"verbose"`
	Debug   bool `json:"debug"`
	// Target is the path of a JSON target descriptor; empty means defaults.
	Target string `json:"target"`
	// Reloc overrides the descriptor's relocation model when set.
	Reloc string `json:"reloc,omitempty"`
	JSON  bool   `json:"json"`
	Watch bool   `json:"watch"`
	// Jobs bounds how many functions are lowered at once.
	Jobs int `json:"jobs,omitempty"`
}

// LoadConfig loads configuration from file
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	if configPath == "" {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil // Default config if file doesn't exist
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.Jobs < 0 {
		return nil, cerrors.InvalidConfig("jobs", fmt.Sprint(config.Jobs))
	}

	return config, nil
}

// SaveConfig saves configuration to file
func (c *Config) SaveConfig(configPath string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Subtarget loads the configured descriptor and applies the relocation
// model override.
func (c *Config) Subtarget() (*target.Subtarget, error) {
	desc, err := target.LoadDescriptor(c.Target)
	if err != nil {
		return nil, err
	}
	if c.Reloc != "" {
		desc.RelocationModel = c.Reloc
	}
	return desc.Subtarget()
}

// HandleError logs err and exits with status 1 when err is not nil.
func HandleError(err error, logger *Logger) {
	if err != nil {
		if logger != nil {
			logger.Error("%v", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
