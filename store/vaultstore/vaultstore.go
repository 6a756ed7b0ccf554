// Package vaultstore backs store.IdentityStore with HashiCorp Vault's
// KV v2 engine, so the long-term identity private key and
// registration id live in Vault rather than on process-local disk.
package vaultstore

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/ratchetproto/signalcore/store"
)

// Store is a store.IdentityStore backed by a Vault KV v2 mount.
type Store struct {
	client     *vaultapi.Client
	mountPath  string
	secretPath string
}

// New builds a Vault API client against addr, authenticates with
// token, and targets the given KV v2 mount/path for the identity
// secret.
func New(addr, token, mountPath, secretPath string) (*Store, error) {
	cfg := vaultapi.DefaultConfig()
	cfg.Address = addr
	client, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vaultstore: new client: %w", err)
	}
	client.SetToken(token)
	return &Store{client: client, mountPath: mountPath, secretPath: secretPath}, nil
}

// GetOurIdentity fetches and decodes the identity key pair from the
// configured secret path.
func (s *Store) GetOurIdentity(ctx context.Context) (store.IdentityKeyPair, error) {
	secret, err := s.client.KVv2(s.mountPath).Get(ctx, s.secretPath)
	if err != nil {
		return store.IdentityKeyPair{}, fmt.Errorf("vaultstore: read identity: %w", err)
	}
	var out store.IdentityKeyPair
	pub, err := fieldBytes(secret.Data, "public")
	if err != nil {
		return store.IdentityKeyPair{}, err
	}
	priv, err := fieldBytes(secret.Data, "private")
	if err != nil {
		return store.IdentityKeyPair{}, err
	}
	copy(out.Public[:], pub)
	copy(out.Private[:], priv)
	return out, nil
}

// GetOurRegistrationID fetches the registration id stored alongside
// the identity key pair.
func (s *Store) GetOurRegistrationID(ctx context.Context) (uint32, error) {
	secret, err := s.client.KVv2(s.mountPath).Get(ctx, s.secretPath)
	if err != nil {
		return 0, fmt.Errorf("vaultstore: read registration id: %w", err)
	}
	raw, ok := secret.Data["registrationId"].(string)
	if !ok {
		return 0, fmt.Errorf("vaultstore: registrationId field missing or not a string")
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("vaultstore: parse registrationId: %w", err)
	}
	return uint32(id), nil
}

// PutIdentity writes the identity key pair and registration id to the
// configured secret path. Provisioning, not part of the core runtime
// path, but needed to seed a fresh deployment.
func (s *Store) PutIdentity(ctx context.Context, kp store.IdentityKeyPair, registrationID uint32) error {
	_, err := s.client.KVv2(s.mountPath).Put(ctx, s.secretPath, map[string]any{
		"public":         base64.StdEncoding.EncodeToString(kp.Public[:]),
		"private":        base64.StdEncoding.EncodeToString(kp.Private[:]),
		"registrationId": strconv.FormatUint(uint64(registrationID), 10),
	})
	if err != nil {
		return fmt.Errorf("vaultstore: write identity: %w", err)
	}
	return nil
}

func fieldBytes(data map[string]any, key string) ([]byte, error) {
	raw, ok := data[key].(string)
	if !ok {
		return nil, fmt.Errorf("vaultstore: field %q missing or not a string", key)
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("vaultstore: decode field %q: %w", key, err)
	}
	return b, nil
}
