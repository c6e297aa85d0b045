package client

import (
	"strconv"
	"strings"

	pkgerrors "github.com/OnlyFor/gradio/pkg/errors"
)

// resolved is the result of resolving a logical endpoint against the
// session's API map and dependency list (C1).
type resolved struct {
	FnIndex      int
	APIInfo      APIInfo
	Dependency   Dependency
}

// resolveEndpoint maps a logical endpoint (name or index) to its fn_index
// and descriptor. It is a pure function: it never mutates api, apiMap, or
// config.
func resolveEndpoint(endpoint string, api API, dependencies []Dependency) (resolved, error) {
	if idx, err := strconv.Atoi(endpoint); err == nil {
		info, ok := api.UnnamedEndpoints[idx]
		if !ok {
			return resolved{}, pkgerrors.NewUnknownEndpointError(endpoint)
		}
		return resolved{
			FnIndex:    info.FnIndex,
			APIInfo:    info,
			Dependency: dependencyFor(dependencies, info.FnIndex),
		}, nil
	}

	trimmed := strings.TrimPrefix(endpoint, "/")
	info, ok := api.NamedEndpoints[trimmed]
	if !ok {
		return resolved{}, pkgerrors.NewUnknownEndpointError(endpoint)
	}
	return resolved{
		FnIndex:    info.FnIndex,
		APIInfo:    info,
		Dependency: dependencyFor(dependencies, info.FnIndex),
	}, nil
}

func dependencyFor(dependencies []Dependency, fnIndex int) Dependency {
	if fnIndex < 0 || fnIndex >= len(dependencies) {
		return Dependency{}
	}
	return dependencies[fnIndex]
}
