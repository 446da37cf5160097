// SPDX-License-Identifier: MPL-2.0

package plugins

import (
	"github.com/envrun/envrun/internal/confset"
	"github.com/envrun/envrun/internal/execute"
	"github.com/envrun/envrun/internal/hook"
)

// ContainerResolver runs environments that set an image in containers.
type ContainerResolver struct{}

// Name implements hook.Plugin.
func (ContainerResolver) Name() string { return "container-resolver" }

// Hooks implements hook.Declarer.
func (ContainerResolver) Hooks() []hook.Point {
	return []hook.Point{hook.PointResolveEnvKind}
}

// ResolveEnvKind implements hook.KindResolver.
func (ContainerResolver) ResolveEnvKind(_ string, conf *confset.Store) (string, bool) {
	if conf.Defined(KeyImage) {
		return execute.NameContainer, true
	}
	return "", false
}
