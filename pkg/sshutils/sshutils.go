package sshutils

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"
)

// SSHKeyReader reads key material from disk. Tests swap it out.
var SSHKeyReader = func(path string) ([]byte, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand key path %s: %w", path, err)
	}
	f, err := os.Open(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to open private key file: %w", err)
	}
	defer f.Close()

	material, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	return material, nil
}

// ParsePrivateKey turns PEM material into a signer, using passphrase only when the
// key turns out to be encrypted.
func ParsePrivateKey(material []byte, passphrase string) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(material)
	if err == nil {
		return signer, nil
	}

	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	if passphrase == "" {
		return nil, fmt.Errorf("private key is encrypted and no passphrase was given: %w", err)
	}

	signer, err = ssh.ParsePrivateKeyWithPassphrase(material, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt private key: %w", err)
	}
	return signer, nil
}
