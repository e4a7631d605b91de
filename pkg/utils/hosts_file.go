package utils

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ReadHosts reads path from fs and returns its whitespace-separated tokens in file order.
func ReadHosts(fs afero.Fs, path string) ([]string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrap(err, "read host list")
	}
	return strings.Fields(string(data)), nil
}
