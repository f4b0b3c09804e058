package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bacalhau-project/sshconn/pkg/logger"
	"github.com/bacalhau-project/sshconn/pkg/sshutils"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"sigs.k8s.io/yaml"
)

const (
	EnvPrefix         = "SSHCONN"
	DefaultConfigName = ".sshconn"
	DefaultConfigPath = "~/.sshconn.yaml"
	DefaultDotEnvFile = ".env"

	redacted = "********"
)

// Viper keys. Flags bind to the same names so file, env and flag values layer.
const (
	KeyHost          = "ssh.host"
	KeyPort          = "ssh.port"
	KeyUser          = "ssh.user"
	KeyPassword      = "ssh.password"
	KeyIdentity      = "ssh.identity"
	KeyPassphrase    = "ssh.passphrase"
	KeyAgent         = "ssh.agent"
	KeyUseDefaultKey = "ssh.use_default_key"
	KeyDefaultKey    = "ssh.default_key"
	KeyTimeout       = "ssh.timeout"
	KeyRetries       = "ssh.retries"
	KeyRetryDelay    = "ssh.retry_delay"
	KeyHostKeyPolicy = "ssh.host_key_policy"
	KeyKnownHosts    = "ssh.known_hosts"
	KeyOptions       = "ssh.options"

	KeyLogLevel      = "general.log_level"
	KeyLogPath       = "general.log_path"
	KeyConsoleLogger = "general.enable_console_logger"
)

// SetDefaults registers the connection defaults on v. Durations are stored in
// milliseconds.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyHost, sshutils.DefaultHost)
	v.SetDefault(KeyPort, sshutils.DefaultSSHPort)
	v.SetDefault(KeyTimeout, sshutils.DefaultTimeout.Milliseconds())
	v.SetDefault(KeyRetries, sshutils.DefaultRetryCount)
	v.SetDefault(KeyRetryDelay, sshutils.DefaultRetryDelay.Milliseconds())
	v.SetDefault(KeyHostKeyPolicy, string(sshutils.HostKeyPolicyVerify))
	v.SetDefault(KeyDefaultKey, sshutils.DefaultKeyRelPath)
	v.SetDefault(KeyKnownHosts, sshutils.DefaultKnownHostsRelPath)

	v.SetDefault(KeyLogLevel, logger.InfoLogLevel)
	v.SetDefault(KeyLogPath, logger.GlobalLogPath)
}

// BindEnv makes SSHCONN_SSH_HOST and friends visible through v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// ReadConfigFile reads path, or ~/.sshconn.yaml when path is empty. A missing
// default file is not an error; a missing explicit file is.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return fmt.Errorf("failed to expand config path %s: %w", path, err)
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", expanded, err)
		}
		return nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(home)
	v.SetConfigType("yaml")
	v.SetConfigName(DefaultConfigName)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// LoadDotEnv loads environment files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{DefaultDotEnvFile}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds a ConnectionConfig from whatever v holds. The result is not yet merged
// with sshutils defaults; NewManager does that.
func Load(v *viper.Viper) (sshutils.ConnectionConfig, error) {
	var cfg sshutils.ConnectionConfig

	timeout, err := ParseMillis(v.Get(KeyTimeout))
	if err != nil {
		return cfg, fmt.Errorf("invalid %s: %w", KeyTimeout, err)
	}
	rawRetryDelay := v.Get(KeyRetryDelay)
	retryDelay, err := ParseMillis(rawRetryDelay)
	if err != nil {
		return cfg, fmt.Errorf("invalid %s: %w", KeyRetryDelay, err)
	}
	if retryDelay == 0 && strings.TrimSpace(cast.ToString(rawRetryDelay)) != "" {
		retryDelay = sshutils.NoRetryDelay
	}
	policy, err := sshutils.ParseHostKeyPolicy(v.GetString(KeyHostKeyPolicy))
	if err != nil {
		return cfg, err
	}
	options, err := ParseOptions(v.Get(KeyOptions))
	if err != nil {
		return cfg, fmt.Errorf("invalid %s: %w", KeyOptions, err)
	}

	port, err := cast.ToIntE(v.Get(KeyPort))
	if err != nil {
		return cfg, fmt.Errorf("invalid %s: %w", KeyPort, err)
	}
	retries, err := cast.ToIntE(v.Get(KeyRetries))
	if err != nil {
		return cfg, fmt.Errorf("invalid %s: %w", KeyRetries, err)
	}

	cfg = sshutils.ConnectionConfig{
		Host:           v.GetString(KeyHost),
		Port:           port,
		User:           v.GetString(KeyUser),
		Password:       v.GetString(KeyPassword),
		PrivateKeyPath: v.GetString(KeyIdentity),
		Passphrase:     v.GetString(KeyPassphrase),
		Agent:          v.GetString(KeyAgent),
		UseDefaultKey:  v.GetBool(KeyUseDefaultKey),
		DefaultKeyPath: v.GetString(KeyDefaultKey),
		Timeout:        timeout,
		Retries:        retries,
		RetryDelay:     retryDelay,
		HostKeyPolicy:  policy,
		KnownHostsFile: v.GetString(KeyKnownHosts),
		ExtraOptions:   options,
	}
	return cfg, nil
}

// ParseMillis accepts a bare number of milliseconds or a Go duration string.
func ParseMillis(value interface{}) (time.Duration, error) {
	if value == nil {
		return 0, nil
	}
	if d, ok := value.(time.Duration); ok {
		return d, nil
	}

	s, err := cast.ToStringE(value)
	if err != nil {
		return 0, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%q is neither milliseconds nor a duration", s)
	}
	return d, nil
}

// ParseOptions accepts either a YAML mapping or a list of key=value strings, the
// form -o flags produce. Values may themselves contain commas.
func ParseOptions(value interface{}) (map[string]string, error) {
	options := map[string]string{}
	if value == nil {
		return options, nil
	}

	if m, err := cast.ToStringMapStringE(value); err == nil {
		for k, v := range m {
			options[k] = v
		}
		return options, nil
	}

	pairs, err := cast.ToStringSliceE(value)
	if err != nil {
		return nil, err
	}
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("option %q is not key=value", pair)
		}
		options[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return options, nil
}

// View is the printable form of a ConnectionConfig with secrets masked.
type View struct {
	Host           string            `json:"host"`
	Port           int               `json:"port"`
	User           string            `json:"user,omitempty"`
	Password       string            `json:"password,omitempty"`
	Identity       string            `json:"identity,omitempty"`
	Passphrase     string            `json:"passphrase,omitempty"`
	Agent          string            `json:"agent,omitempty"`
	UseDefaultKey  bool              `json:"use_default_key"`
	DefaultKey     string            `json:"default_key,omitempty"`
	TimeoutMs      int64             `json:"timeout_ms"`
	Retries        int               `json:"retries"`
	RetryDelayMs   int64             `json:"retry_delay_ms"`
	HostKeyPolicy  string            `json:"host_key_policy"`
	KnownHostsFile string            `json:"known_hosts,omitempty"`
	Options        map[string]string `json:"options,omitempty"`
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}

// NewView applies sshutils defaults to cfg and masks its secrets.
func NewView(cfg sshutils.ConnectionConfig) View {
	cfg = cfg.WithDefaults()
	return View{
		Host:           cfg.Host,
		Port:           cfg.Port,
		User:           cfg.User,
		Password:       mask(cfg.Password),
		Identity:       cfg.PrivateKeyPath,
		Passphrase:     mask(cfg.Passphrase),
		Agent:          cfg.Agent,
		UseDefaultKey:  cfg.UseDefaultKey,
		DefaultKey:     cfg.DefaultKeyPath,
		TimeoutMs:      cfg.Timeout.Milliseconds(),
		Retries:        cfg.Retries,
		RetryDelayMs:   cfg.EffectiveRetryDelay().Milliseconds(),
		HostKeyPolicy:  string(cfg.HostKeyPolicy),
		KnownHostsFile: cfg.KnownHostsFile,
		Options:        cfg.ExtraOptions,
	}
}

func (v View) ToYAML() ([]byte, error) {
	return yaml.Marshal(v)
}

// Rows lists the view as ordered key/value pairs, options sorted by key.
func (v View) Rows() [][2]string {
	rows := [][2]string{
		{"host", v.Host},
		{"port", strconv.Itoa(v.Port)},
		{"user", v.User},
		{"password", v.Password},
		{"identity", v.Identity},
		{"passphrase", v.Passphrase},
		{"agent", v.Agent},
		{"use_default_key", strconv.FormatBool(v.UseDefaultKey)},
		{"default_key", v.DefaultKey},
		{"timeout_ms", strconv.FormatInt(v.TimeoutMs, 10)},
		{"retries", strconv.Itoa(v.Retries)},
		{"retry_delay_ms", strconv.FormatInt(v.RetryDelayMs, 10)},
		{"host_key_policy", v.HostKeyPolicy},
		{"known_hosts", v.KnownHostsFile},
	}

	keys := make([]string, 0, len(v.Options))
	for k := range v.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rows = append(rows, [2]string{"options." + k, v.Options[k]})
	}
	return rows
}
