package utils

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadHosts(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "hosts.txt", []byte("www.example.com\n\n  93.184.216.34\tmail.example.com \r\nlast.example.com"), 0644))

	hosts, err := ReadHosts(fs, "hosts.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"www.example.com", "93.184.216.34", "mail.example.com", "last.example.com"}, hosts)
}

func TestReadHostsEmpty(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "empty.txt", []byte(" \n\t\n"), 0644))

	hosts, err := ReadHosts(fs, "empty.txt")
	require.NoError(t, err)
	assert.Empty(t, hosts)
}

func TestReadHostsMissing(t *testing.T) {
	_, err := ReadHosts(afero.NewMemMapFs(), "missing.txt")
	assert.Error(t, err)
}
