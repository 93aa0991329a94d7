package tokeninfo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/fsnotify/fsnotify"
	"github.com/golang-jwt/jwt/v5"
)

// fileVerifier validates session tokens against a JWKS document read
// from disk, reloading it when the file changes. Useful for air-gapped
// deployments where the relay's keys are distributed out of band.
type fileVerifier struct {
	cfg  *Config
	path string
	log  *slog.Logger

	mu sync.RWMutex
	kf jwt.Keyfunc
}

// NewFileVerifier constructs a Verifier backed by the JWKS file at
// path. The file is watched with fsnotify and reloaded on change; a
// reload failure keeps the previous key set.
func NewFileVerifier(ctx context.Context, path string, cfg *Config, log *slog.Logger) (Verifier, error) {
	if path == "" {
		return nil, errors.New("tokeninfo: jwks file path required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = slog.Default()
	}
	v := &fileVerifier{cfg: cfg, path: path, log: log}
	if err := v.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("tokeninfo: watcher init failed: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("tokeninfo: watch %s: %w", path, err)
	}
	go v.watch(ctx, watcher)

	return v, nil
}

func (v *fileVerifier) reload() error {
	raw, err := os.ReadFile(v.path)
	if err != nil {
		return fmt.Errorf("tokeninfo: read jwks file: %w", err)
	}
	kf, err := keyfunc.NewJWKSetJSON(raw)
	if err != nil {
		return fmt.Errorf("tokeninfo: parse jwks file: %w", err)
	}
	v.mu.Lock()
	v.kf = guardAlgs(v.cfg, kf.Keyfunc)
	v.mu.Unlock()
	return nil
}

func (v *fileVerifier) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := v.reload(); err != nil {
				v.log.WarnContext(ctx, "jwks.reload.fail", slog.String("err", err.Error()))
				continue
			}
			v.log.DebugContext(ctx, "jwks.reload.ok")
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			v.log.WarnContext(ctx, "jwks.watch.fail", slog.String("err", err.Error()))
		}
	}
}

func (v *fileVerifier) Verify(ctx context.Context, token string) error {
	v.mu.RLock()
	kf := v.kf
	v.mu.RUnlock()
	return verify(v.cfg, kf, token)
}

var _ Verifier = (*fileVerifier)(nil)
