package app

import (
	"fmt"
	"strings"

	"github.com/buildx-app/backend/pkg/crypto"
)

const jwtSecretBytes = 48

// ApplyRuntimeDefaults ensures the token-signing secrets are populated
// even when no configuration file is supplied. It returns a map naming
// the generated keys so callers can log the event without exposing
// values. Generated secrets do not survive a restart, so previously
// issued tokens become invalid; production deployments should pin all
// four.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)

	secrets := []struct {
		key   string
		value *string
	}{
		{"auth.jwt.general_secret", &cfg.Auth.JWT.GeneralSecret},
		{"auth.jwt.access_secret", &cfg.Auth.JWT.AccessSecret},
		{"auth.jwt.refresh_secret", &cfg.Auth.JWT.RefreshSecret},
		{"auth.jwt.reset_secret", &cfg.Auth.JWT.ResetSecret},
	}

	for _, secret := range secrets {
		if strings.TrimSpace(*secret.value) != "" {
			continue
		}
		value, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", secret.key, err)
		}
		*secret.value = value
		generated[secret.key] = true
	}

	return generated, nil
}
