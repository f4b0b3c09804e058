package testutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// KeyPair is a throwaway ed25519 key in the encodings tests need.
type KeyPair struct {
	PrivateKey    ed25519.PrivateKey
	Signer        ssh.Signer
	PublicKey     ssh.PublicKey
	PrivatePEM    []byte
	AuthorizedKey string
}

// GenerateKeyPair creates an unencrypted key pair, or an encrypted one when a
// passphrase is given.
func GenerateKeyPair(passphrase string) (*KeyPair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	}
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}

	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}

	return &KeyPair{
		PrivateKey:    priv,
		Signer:        signer,
		PublicKey:     signer.PublicKey(),
		PrivatePEM:    pem.EncodeToMemory(block),
		AuthorizedKey: string(ssh.MarshalAuthorizedKey(signer.PublicKey())),
	}, nil
}

// CreateSSHPublicPrivateKeyPairOnDisk writes a fresh key pair to temp files and
// returns (publicPath, publicCleanup, privatePath, privateCleanup).
func CreateSSHPublicPrivateKeyPairOnDisk() (string, func(), string, func()) {
	kp, err := GenerateKeyPair("")
	if err != nil {
		panic(err)
	}
	testSSHPublicKeyPath, cleanupPublicKey, err := WriteStringToTempFile(kp.AuthorizedKey)
	if err != nil {
		panic(err)
	}
	testSSHPrivateKeyPath, cleanupPrivateKey, err := WriteStringToTempFile(string(kp.PrivatePEM))
	if err != nil {
		cleanupPublicKey()
		panic(err)
	}

	return testSSHPublicKeyPath, cleanupPublicKey, testSSHPrivateKeyPath, cleanupPrivateKey
}
