package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func versionedLoader(version string, calls *int) Loader {
	return func() (*Catalogue, error) {
		*calls++
		return NewBuilder(testRegulation(), version).Build()
	}
}

func TestRegistry_Resolve(t *testing.T) {
	reg := NewRegistry()
	var calls int
	require.NoError(t, reg.Register("test-reg", "1.0.0", versionedLoader("1.0.0", &calls)))
	require.NoError(t, reg.Register("test-reg", "1.1.0", versionedLoader("1.1.0", &calls)))
	require.NoError(t, reg.Register("test-reg", "2.0.0", versionedLoader("2.0.0", &calls)))

	cat, err := reg.Get("test-reg")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", cat.Version().String())

	cat, err = reg.Resolve("test-reg", "^1.0")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", cat.Version().String())

	_, err = reg.Resolve("test-reg", ">=3.0.0")
	assert.True(t, errors.Is(err, ErrVersionNotFound))

	_, err = reg.Resolve("test-reg", "not a constraint")
	assert.True(t, errors.Is(err, ErrInvalidVersion))

	again, err := reg.Get("test-reg")
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "each version is built once")
	assert.Equal(t, "2.0.0", again.Version().String())
}

func TestRegistry_UnknownRegulation(t *testing.T) {
	_, err := NewRegistry().Get("gdpr")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownRegulation))
	assert.Contains(t, err.Error(), "gdpr")
}

func TestRegistry_RegisterErrors(t *testing.T) {
	reg := NewRegistry()
	var calls int
	require.NoError(t, reg.Register("r", "1.0.0", versionedLoader("1.0.0", &calls)))
	assert.True(t, errors.Is(reg.Register("r", "1.0.0", versionedLoader("1.0.0", &calls)), ErrDuplicateVersion))
	assert.True(t, errors.Is(reg.Register("r", "latest", versionedLoader("1.0.0", &calls)), ErrInvalidVersion))
}

func TestRegistry_LoaderError(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("boom")
	require.NoError(t, reg.Register("r", "1.0.0", func() (*Catalogue, error) { return nil, boom }))
	_, err := reg.Get("r")
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_List(t *testing.T) {
	reg := NewRegistry()
	var calls int
	require.NoError(t, reg.Register("b", "1.0.0", versionedLoader("1.0.0", &calls)))
	require.NoError(t, reg.Register("a", "2.0.0", versionedLoader("2.0.0", &calls)))
	require.NoError(t, reg.Register("a", "1.0.0", versionedLoader("1.0.0", &calls)))

	assert.Equal(t, []Version{
		{RegulationID: "a", Version: "1.0.0"},
		{RegulationID: "a", Version: "2.0.0"},
		{RegulationID: "b", Version: "1.0.0"},
	}, reg.List())
	assert.Zero(t, calls)
}
