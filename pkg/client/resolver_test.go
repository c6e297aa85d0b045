package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEndpointByName(t *testing.T) {
	api := API{
		NamedEndpoints: map[string]APIInfo{
			"predict": {FnIndex: 2, EndpointPath: "/predict"},
		},
	}
	deps := []Dependency{{}, {}, {SkipQueue: true}}

	res, err := resolveEndpoint("/predict", api, deps)
	require.NoError(t, err)
	assert.Equal(t, 2, res.FnIndex)
	assert.True(t, res.Dependency.SkipQueue)

	res2, err := resolveEndpoint("predict", api, deps)
	require.NoError(t, err)
	assert.Equal(t, res.FnIndex, res2.FnIndex)
}

func TestResolveEndpointByIndex(t *testing.T) {
	api := API{
		UnnamedEndpoints: map[int]APIInfo{
			0: {FnIndex: 0, EndpointPath: "/predict"},
		},
	}

	res, err := resolveEndpoint("0", api, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.FnIndex)
}

func TestResolveEndpointUnknown(t *testing.T) {
	api := API{NamedEndpoints: map[string]APIInfo{}, UnnamedEndpoints: map[int]APIInfo{}}

	_, err := resolveEndpoint("/missing", api, nil)
	require.Error(t, err)

	_, err = resolveEndpoint("7", api, nil)
	require.Error(t, err)
}

func TestDependencyForOutOfRange(t *testing.T) {
	deps := []Dependency{{SkipQueue: true}}
	assert.Equal(t, Dependency{}, dependencyFor(deps, 5))
	assert.Equal(t, Dependency{}, dependencyFor(deps, -1))
	assert.Equal(t, deps[0], dependencyFor(deps, 0))
}
