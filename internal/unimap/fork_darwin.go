package unimap

import "github.com/spf13/afero"

// companionFork reads the HFS+ resource fork of path.
func companionFork(fsys afero.Fs, path string) ([]byte, error) {
	return afero.ReadFile(fsys, path+"/..namedfork/rsrc")
}
