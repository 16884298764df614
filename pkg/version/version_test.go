package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString_IncludesVersionAndCommit(t *testing.T) {
	old := Version
	Version = "1.2.3"
	defer func() { Version = old }()

	s := String()

	assert.Contains(t, s, "1.2.3")
	assert.Contains(t, s, "commit:")
}

func TestGetInfo_PopulatesPlatform(t *testing.T) {
	info := GetInfo()

	assert.NotEmpty(t, info.OS)
	assert.NotEmpty(t, info.Arch)
	assert.NotEmpty(t, info.GoVersion)
}
