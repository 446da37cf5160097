// SPDX-License-Identifier: MPL-2.0

// Package graph builds the environments of a run and orders package
// environments before the run environments that install their artifacts.
package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/envrun/envrun/internal/confset"
	"github.com/envrun/envrun/internal/environment"
	"github.com/envrun/envrun/internal/envreg"
)

// ErrInvalidDependency is returned for a package reference the graph cannot honor.
var ErrInvalidDependency = errors.New("invalid package dependency")

type (
	// Hooks is what building needs from the plugin registry.
	Hooks interface {
		envreg.Resolver
		AddEnvConfig(env environment.Environment) error
	}

	// Builder constructs the graph of one invocation.
	Builder struct {
		Config *confset.Config
		Kinds  *envreg.Registry
		Hooks  Hooks
		Run    *environment.Run
	}

	// Descriptor is one node of the graph.
	Descriptor struct {
		Env  environment.Environment
		Role environment.Role
		// Package names the package environment a run environment installs from.
		Package string
		// Dependents lists the run environments consuming a package environment.
		Dependents []string
		// Selected is false for package environments pulled in by a consumer.
		Selected bool
	}

	// Graph is the ordered set of environments to schedule.
	Graph struct {
		order []string
		nodes map[string]*Descriptor
		// unconsumed lists selected package environments no selected run
		// environment installs from.
		unconsumed []string
	}

	// InvalidDependencyError describes a rejected package reference.
	InvalidDependencyError struct {
		Env     string
		Package string
		Reason  string
	}
)

func (e *InvalidDependencyError) Error() string {
	return fmt.Sprintf("[%s] package_env %q: %s", e.Env, e.Package, e.Reason)
}

func (e *InvalidDependencyError) Unwrap() error { return ErrInvalidDependency }

// Build constructs each selected run environment and every package
// environment they reference, exactly once. A package environment without a
// consuming run environment in the selection is never constructed. Independent environments keep the order of
// selected; a package environment comes before its first consumer.
func (b *Builder) Build(selected []string) (*Graph, error) {
	run := b.Run
	if run == nil {
		run = environment.NewRun()
	}
	selected = dedupe(selected)

	refs := make(map[string]string, len(selected))
	packages := make(map[string]bool)
	var packageOrder []string
	markPackage := func(name string) {
		if !packages[name] {
			packages[name] = true
			packageOrder = append(packageOrder, name)
		}
	}
	for _, name := range selected {
		ref, isPackage, err := b.packageRef(name)
		if err != nil {
			return nil, err
		}
		if isPackage {
			markPackage(name)
			continue
		}
		if ref != "" {
			refs[name] = ref
			markPackage(ref)
		}
	}
	for _, name := range selected {
		if ref, ok := refs[name]; ok && packages[name] {
			return nil, &InvalidDependencyError{Env: name, Package: ref, Reason: "a package environment cannot depend on another package environment"}
		}
	}
	for _, name := range packageOrder {
		if err := b.checkPackage(name); err != nil {
			return nil, err
		}
	}

	g := &Graph{nodes: make(map[string]*Descriptor)}
	d := newDAG()
	isSelected := make(map[string]bool, len(selected))
	for _, name := range selected {
		isSelected[name] = true
	}
	construct := func(name string, role environment.Role) (*Descriptor, error) {
		if node, ok := g.nodes[name]; ok {
			return node, nil
		}
		env, err := b.construct(name, role, run)
		if err != nil {
			return nil, err
		}
		node := &Descriptor{Env: env, Role: role, Selected: isSelected[name]}
		g.nodes[name] = node
		d.addNode(name)
		return node, nil
	}

	for _, name := range selected {
		if packages[name] {
			// built only through a consumer
			continue
		}
		ref := refs[name]
		var pkgNode *Descriptor
		if ref != "" {
			var err error
			if pkgNode, err = construct(ref, environment.RolePackage); err != nil {
				return nil, err
			}
		}
		node, err := construct(name, environment.RoleRun)
		if err != nil {
			return nil, err
		}
		if pkgNode == nil {
			continue
		}
		if err := wire(node, pkgNode); err != nil {
			return nil, err
		}
		node.Package = ref
		pkgNode.Dependents = append(pkgNode.Dependents, name)
		d.addEdge(ref, name)
	}

	for _, name := range selected {
		if _, ok := g.nodes[name]; !ok && packages[name] {
			g.unconsumed = append(g.unconsumed, name)
		}
	}

	order, err := d.sort()
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// packageRef reads which package environment name installs from. A name
// that resolves to itself through the core default is a package environment.
func (b *Builder) packageRef(name string) (string, bool, error) {
	conf := b.Config.Env(name)
	if err := environment.DeclarePackageRef(conf); err != nil {
		return "", false, err
	}
	ref, err := confset.Get[string](conf, environment.KeyPackageEnv)
	if err != nil {
		return "", false, err
	}
	if ref != name {
		if ref == "" && b.explicitPackageKind(name) {
			return "", true, nil
		}
		return ref, false, nil
	}
	if conf.Defined(environment.KeyPackageEnv) {
		return "", false, &InvalidDependencyError{Env: name, Package: ref, Reason: "an environment cannot be its own package environment"}
	}
	return "", true, nil
}

// explicitPackageKind reports whether name sets a runner registered for package environments.
func (b *Builder) explicitPackageKind(name string) bool {
	conf := b.Config.Env(name)
	if err := environment.DeclareRunner(conf); err != nil {
		return false
	}
	runner, err := confset.Get[string](conf, environment.KeyRunner)
	if err != nil || runner == "" {
		return false
	}
	k, ok := b.Kinds.Lookup(runner)
	return ok && k.Role == environment.RolePackage
}

func (b *Builder) checkPackage(name string) error {
	conf := b.Config.Env(name)
	if err := environment.DeclarePackageRef(conf); err != nil {
		return err
	}
	if !conf.Defined(environment.KeyPackageEnv) {
		return nil
	}
	ref, err := confset.Get[string](conf, environment.KeyPackageEnv)
	if err != nil {
		return err
	}
	if ref == "" {
		return nil
	}
	return &InvalidDependencyError{Env: name, Package: ref, Reason: "a package environment cannot declare its own package_env"}
}

func (b *Builder) construct(name string, role environment.Role, run *environment.Run) (environment.Environment, error) {
	conf := b.Config.Env(name)
	var resolver envreg.Resolver
	if b.Hooks != nil {
		resolver = b.Hooks
	}
	kind, err := b.Kinds.ResolveKindFor(name, conf, role, resolver)
	if err != nil {
		return nil, err
	}
	env, err := kind.New(environment.Spec{Name: name, Conf: conf, Core: b.Config.Core(), Run: run})
	if err != nil {
		return nil, err
	}
	if env.Role() != role {
		return nil, &envreg.NoMatchingKindError{Env: name, Kind: kind.Name, Role: role, Actual: env.Role()}
	}
	if b.Hooks != nil {
		if err := b.Hooks.AddEnvConfig(env); err != nil {
			return nil, err
		}
	}
	return env, nil
}

func wire(run, pkg *Descriptor) error {
	consumer, ok := run.Env.(environment.PackageConsumer)
	if !ok {
		return &InvalidDependencyError{Env: run.Env.Name(), Package: pkg.Env.Name(), Reason: fmt.Sprintf("kind %q cannot install packages", run.Env.Kind())}
	}
	packager, ok := pkg.Env.(environment.Packager)
	if !ok {
		return &InvalidDependencyError{Env: run.Env.Name(), Package: pkg.Env.Name(), Reason: fmt.Sprintf("kind %q does not build packages", pkg.Env.Kind())}
	}
	consumer.SetPackageEnv(packager)
	packager.AddConsumer(run.Env.Name())
	return nil
}

func dedupe(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

// Order returns the environment names in scheduling order.
func (g *Graph) Order() []string { return slices.Clone(g.order) }

// Nodes returns the descriptors in scheduling order.
func (g *Graph) Nodes() []*Descriptor {
	out := make([]*Descriptor, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.nodes[name])
	}
	return out
}

// Node returns the descriptor of name.
func (g *Graph) Node(name string) (*Descriptor, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Unconsumed returns the selected package environments left out of the
// graph because no selected run environment references them.
func (g *Graph) Unconsumed() []string { return slices.Clone(g.unconsumed) }

// Len returns the number of environments.
func (g *Graph) Len() int { return len(g.order) }

// Dependencies returns the names name must wait for.
func (g *Graph) Dependencies(name string) []string {
	n, ok := g.nodes[name]
	if !ok || n.Package == "" {
		return nil
	}
	return []string{n.Package}
}

// Environments returns the environments in scheduling order.
func (g *Graph) Environments() []environment.Environment {
	out := make([]environment.Environment, 0, len(g.order))
	for _, n := range g.Nodes() {
		out = append(out, n.Env)
	}
	return out
}
