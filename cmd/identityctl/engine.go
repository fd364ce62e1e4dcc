package main

import (
	"fmt"
	"os"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// withEphemeralKeys fills in a throwaway Ed25519 key pair when cfg has no
// signing material, so demo and loadtest run without any setup.
func withEphemeralKeys(cfg *goIdentity.Config, logger *zap.Logger) error {
	j := &cfg.JWT
	if len(j.PrivateKey) > 0 || j.PrivateKeyFile != "" || j.Secret != "" {
		return nil
	}
	keys, err := generateEd25519()
	if err != nil {
		return err
	}
	j.SigningMethod = "ed25519"
	j.PrivateKey = []byte(keys.PrivateKey)
	j.PublicKey = []byte(keys.PublicKey)
	logger.Debug("using ephemeral signing key")
	return nil
}

// openRedis connects to addr, then $REDIS_ADDR, and starts an in-process
// miniredis when neither is set. The returned func releases everything.
func openRedis(addr string, out func(string)) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		out("using redis at " + addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	out("using miniredis at " + mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}
