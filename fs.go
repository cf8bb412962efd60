package main

import "github.com/spf13/afero"

func newOSFS() afero.Fs {
	return afero.NewReadOnlyFs(afero.NewOsFs())
}

// NewMemFS is an in-memory filesystem for tests.
func NewMemFS() afero.Fs {
	return afero.NewMemMapFs()
}
