package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/keyhavenhq/accountd/internal/account/store"
	"github.com/keyhavenhq/accountd/pkg/cryptox"
	"github.com/keyhavenhq/accountd/pkg/jwtx"
)

// InitSigningKeys builds the KeyManager for the configured storage mode.
//
// "ephemeral" generates keys in memory on startup; every previously issued
// session dies with a restart. "persistent" loads encrypted keys from the
// database so sessions survive restarts and rotation keeps a verification
// grace period. The returned cipher is nil in ephemeral mode.
func InitSigningKeys(ctx context.Context, cfg Config, db store.Store, logger *slog.Logger) (*jwtx.KeyManager, *cryptox.KeyCipher, error) {
	switch cfg.KeyStorageMode {
	case "persistent":
		secret, err := os.ReadFile(cfg.MasterKeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("app: read master key file: %w", err)
		}
		cipher, err := cryptox.NewKeyCipher([]byte(strings.TrimSpace(string(secret))))
		if err != nil {
			return nil, nil, fmt.Errorf("app: init key cipher: %w", err)
		}

		manager, err := jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{
			Store:     db.SigningKeys(),
			Cipher:    cipher,
			Algorithm: cfg.Algorithm,
			Issuer:    cfg.Issuer,
			NumKeys:   cfg.NumKeys,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("app: init persistent key manager: %w", err)
		}

		logger.Info("persistent signing keys loaded",
			"algorithm", manager.Algorithm(),
			"num_keys", manager.NumSigners(),
			"grace_period", cfg.KeyGracePeriod,
		)
		return manager, cipher, nil

	default:
		manager, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
			Algorithm: cfg.Algorithm,
			Issuer:    cfg.Issuer,
			NumKeys:   cfg.NumKeys,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("app: init ephemeral key manager: %w", err)
		}

		logger.Info("ephemeral signing keys generated",
			"algorithm", manager.Algorithm(),
			"num_keys", manager.NumSigners(),
		)
		logger.Warn("sessions issued before this restart are now invalid")
		return manager, nil, nil
	}
}
