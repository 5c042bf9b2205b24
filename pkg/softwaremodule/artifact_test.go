package softwaremodule

import (
	"strings"
	"testing"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash(t *testing.T) {
	hashes, size, err := hash(strings.NewReader("hello"))

	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
	assert.Equal(t, Hashes{
		MD5:    "5d41402abc4b2a76b9719d911017c592",
		SHA1:   "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d",
		SHA256: "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
	}, hashes)
}

func TestVerify(t *testing.T) {
	hashes, _, err := hash(strings.NewReader("hello"))
	require.NoError(t, err)

	assert.NoError(t, hashes.verify(Hashes{}))
	assert.NoError(t, hashes.verify(Hashes{SHA1: "AAF4C61DDCC5E8A2DABEDE0F3B482CD9AEA9434D"}))

	err = hashes.verify(Hashes{MD5: "5d41402abc4b2a76b9719d911017c592", SHA256: "abc"})
	require.Error(t, err)
	assert.True(t, errdef.IsBadRequest(err))
	assert.Contains(t, err.Error(), "sha256")
}

func TestObjectKey(t *testing.T) {
	module := model.SoftwareModule{Name: "Kernel Image", Version: "5.10.1"}

	key := objectKey("ACME", module, "aaf4c61d")

	assert.Equal(t, "acme/kernel-image-5-10-1/aaf4c61d", key)
}
