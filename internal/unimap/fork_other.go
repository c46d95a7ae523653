//go:build !darwin

package unimap

import "github.com/spf13/afero"

// companionFork is only available on darwin.
func companionFork(afero.Fs, string) ([]byte, error) {
	return nil, nil
}
