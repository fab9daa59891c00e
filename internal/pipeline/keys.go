package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"romdock/internal/apperrors"
	"romdock/internal/fscopy"
)

var keyFiles = []string{"prod.keys", "title.keys", "keys.txt"}

// stageKeys copies the decryption key files from the configured key store
// into the local key dir. When required, a missing or empty prod.keys fails
// the whole job; organize runs without keys and just identifies less.
func (p *Pipeline) stageKeys(jobID string, required bool) error {
	p.log(jobID, "Staging decryption keys...")

	if err := os.MkdirAll(p.cfg.LocalKeysDir, 0o755); err != nil {
		return fmt.Errorf("failed to create local key dir: %w", err)
	}
	for _, name := range keyFiles {
		src := filepath.Join(p.cfg.KeysDir, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if _, err := fscopy.CopyWithProgress(src, filepath.Join(p.cfg.LocalKeysDir, name), nil); err != nil {
			return fmt.Errorf("failed to stage %s: %w", name, err)
		}
	}

	prod := filepath.Join(p.cfg.LocalKeysDir, "prod.keys")
	fi, err := os.Stat(prod)
	if err != nil || fi.Size() == 0 {
		if required {
			return apperrors.Config(fmt.Sprintf("prod.keys missing - place in %s/", p.cfg.KeysDir))
		}
		return nil
	}
	p.log(jobID, "Keys staged: %s", prod)
	return nil
}
