package config

import (
	"context"
	"fmt"

	"github.com/knadh/koanf/providers/file"
)

// Watch reloads the layered configuration whenever the YAML file at path
// changes and hands the result to onChange. A reload that fails carries the
// error and a nil Config. Watching stops when ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Config, error)) error {
	if path == "" {
		return fmt.Errorf("%w: no config file to watch", ErrLoadConfig)
	}
	fp := file.Provider(path)
	err := fp.Watch(func(_ interface{}, werr error) {
		if werr != nil {
			onChange(nil, fmt.Errorf("%w: watch %s: %w", ErrLoadConfig, path, werr))
			return
		}
		onChange(LoadFile(ctx, path))
	})
	if err != nil {
		return fmt.Errorf("%w: watch %s: %w", ErrLoadConfig, path, err)
	}
	go func() {
		<-ctx.Done()
		_ = fp.Unwatch()
	}()
	return nil
}
