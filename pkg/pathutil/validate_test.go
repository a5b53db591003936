package pathutil_test

import (
	"strings"
	"testing"

	"github.com/drover-project/drover/pkg/errclass"
	"github.com/drover-project/drover/pkg/pathutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDirName(t *testing.T) {
	valid := []string{"locks", "coordination", "my-dir_1.2"}
	for _, name := range valid {
		assert.NoError(t, pathutil.ValidateDirName(name), name)
	}

	invalid := []string{"", "..", "a..b", "a/b", `a\b`, "white space", "sneaky\x00"}
	for _, name := range invalid {
		err := pathutil.ValidateDirName(name)
		require.Error(t, err, "%q should be rejected", name)
		assert.ErrorIs(t, err, errclass.ErrNameInvalid)
	}
}

func TestValidateLabel(t *testing.T) {
	assert.NoError(t, pathutil.ValidateLabel(""))
	assert.NoError(t, pathutil.ValidateLabel("fix flaky auth test"))
	assert.NoError(t, pathutil.ValidateLabel("unicode label: déjà vu"))

	err := pathutil.ValidateLabel("has\ncontrol")
	require.Error(t, err)
	assert.ErrorIs(t, err, errclass.ErrNameInvalid)

	assert.Error(t, pathutil.ValidateLabel(strings.Repeat("x", 500)))
}

func TestSanitizeHostComponent(t *testing.T) {
	assert.Equal(t, "build-host.example.com", pathutil.SanitizeHostComponent("Build-Host.example.com"))
	assert.Equal(t, "host-1", pathutil.SanitizeHostComponent("host_1"))
	assert.Equal(t, "unknown-host", pathutil.SanitizeHostComponent(""))
}
