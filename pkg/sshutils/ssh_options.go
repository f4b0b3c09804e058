package sshutils

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// extraOptions is the parsed form of ConnectionConfig.ExtraOptions.
type extraOptions struct {
	Ciphers             []string
	KeyExchanges        []string
	MACs                []string
	HostKeyAlgorithms   []string
	ClientVersion       string
	ServerAliveInterval time.Duration

	// Superseded names that HostKeyPolicy now owns.
	Ignored []string
	Unknown []string
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseExtraOptions(opts map[string]string) (extraOptions, error) {
	var parsed extraOptions

	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := strings.TrimSpace(opts[key])
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "ciphers":
			parsed.Ciphers = splitList(value)
		case "kexalgorithms":
			parsed.KeyExchanges = splitList(value)
		case "macs":
			parsed.MACs = splitList(value)
		case "hostkeyalgorithms":
			parsed.HostKeyAlgorithms = splitList(value)
		case "clientversion":
			if !strings.HasPrefix(value, "SSH-2.0-") {
				return extraOptions{}, fmt.Errorf("ClientVersion must start with SSH-2.0-, got %q", value)
			}
			parsed.ClientVersion = value
		case "serveraliveinterval":
			seconds, err := strconv.Atoi(value)
			if err != nil || seconds < 0 {
				return extraOptions{}, fmt.Errorf("invalid ServerAliveInterval %q: must be a non-negative number of seconds", value)
			}
			parsed.ServerAliveInterval = time.Duration(seconds) * time.Second
		case "stricthostkeychecking", "userknownhostsfile":
			parsed.Ignored = append(parsed.Ignored, key)
		default:
			parsed.Unknown = append(parsed.Unknown, key)
		}
	}
	return parsed, nil
}

func (o extraOptions) apply(cc *ssh.ClientConfig) {
	if len(o.Ciphers) > 0 {
		cc.Ciphers = o.Ciphers
	}
	if len(o.KeyExchanges) > 0 {
		cc.KeyExchanges = o.KeyExchanges
	}
	if len(o.MACs) > 0 {
		cc.MACs = o.MACs
	}
	if len(o.HostKeyAlgorithms) > 0 {
		cc.HostKeyAlgorithms = o.HostKeyAlgorithms
	}
	if o.ClientVersion != "" {
		cc.ClientVersion = o.ClientVersion
	}
}
