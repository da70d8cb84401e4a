package env

import (
	"log"
	"os"
	"strings"

	"github.com/agentuity/go-entitycache/logger"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// LogLevelEnv is consulted when the log-level flag is not set.
const LogLevelEnv = "ENTITYCACHE_LOG_LEVEL"

type EnvLine struct {
	Key string `json:"key"`
	Val string `json:"val"`
}

// ParseEnvFile parses an environment file. A missing file yields no lines.
func ParseEnvFile(filename string) ([]EnvLine, error) {
	buf, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return []EnvLine{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "env: reading %s", filename)
	}
	return ParseEnvBuffer(buf)
}

func dequote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// ProcessEnvLine splits a KEY=value line, removing quotes around the value.
func ProcessEnvLine(line string) EnvLine {
	key, val, ok := strings.Cut(line, "=")
	if !ok {
		return EnvLine{Key: line}
	}
	return EnvLine{Key: strings.TrimSpace(key), Val: dequote(strings.TrimSpace(val))}
}

// interpolate expands ${NAME} and ${NAME:-default} from vars, and
// ${env:NAME} from the process environment. Unresolved references without a
// default are kept as written.
func interpolate(val string, vars map[string]string) string {
	if !strings.Contains(val, "${") {
		return val
	}
	return os.Expand(val, func(ref string) string {
		name, def, hasDefault := strings.Cut(ref, ":-")
		var (
			v     string
			found bool
		)
		if osName, ok := strings.CutPrefix(name, "env:"); ok {
			v, found = os.LookupEnv(osName)
		} else {
			v, found = vars[name]
		}
		switch {
		case found && v != "":
			return v
		case hasDefault:
			return def
		default:
			return "${" + ref + "}"
		}
	})
}

// ParseEnvBuffer parses KEY=value lines, skipping blanks and # comments.
// Values may reference keys defined anywhere in the buffer.
func ParseEnvBuffer(buf []byte) ([]EnvLine, error) {
	envs := make([]EnvLine, 0)
	vars := make(map[string]string)
	for _, line := range strings.Split(string(buf), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		el := ProcessEnvLine(line)
		if el.Key == "" {
			continue
		}
		el.Val = interpolate(el.Val, vars)
		vars[el.Key] = el.Val
		envs = append(envs, el)
	}
	// forward references resolve once every key is known
	for i := range envs {
		envs[i].Val = interpolate(envs[i].Val, vars)
	}
	return envs, nil
}

// LoadEnvFile sets the variables of an environment file that are not
// already set in the process environment.
func LoadEnvFile(filename string) error {
	envs, err := ParseEnvFile(filename)
	if err != nil {
		return err
	}
	for _, el := range envs {
		if _, ok := os.LookupEnv(el.Key); ok {
			continue
		}
		if err := os.Setenv(el.Key, el.Val); err != nil {
			return errors.Wrapf(err, "env: setting %s", el.Key)
		}
	}
	return nil
}

// FlagOrEnv will try and get a flag from the cobra.Command and if not found, look it up in the environment
// and fallback to defaultValue if non found
func FlagOrEnv(cmd *cobra.Command, flagName string, envName string, defaultValue string) string {
	flagValue, _ := cmd.Flags().GetString(flagName)
	if flagValue != "" {
		return flagValue
	}
	if val, ok := os.LookupEnv(envName); ok && val != "" {
		return val
	}
	return defaultValue
}

// LogLevel resolves the log-level flag, then ENTITYCACHE_LOG_LEVEL, falling
// back to info for missing or unknown values.
func LogLevel(cmd *cobra.Command) logger.LogLevel {
	level, _ := logger.ParseLevel(FlagOrEnv(cmd, "log-level", LogLevelEnv, "info"))
	return level
}

// NewLogger returns a console logger at the level LogLevel resolves.
func NewLogger(cmd *cobra.Command) logger.Logger {
	log.SetFlags(0)
	return logger.NewConsoleLogger(LogLevel(cmd))
}
