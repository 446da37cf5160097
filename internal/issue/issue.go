// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
)

// Catalog entries.
const (
	ConfigNotFoundID ID = iota + 1
	ConfigParseErrorID
	UnknownEnvironmentID
	InvalidDependencyID
	KindConflictID
	NoMatchingKindID
	UnknownExtensionPointID
	UnresolvedSubstitutionID
	MissingRequirementID
	ContainerEngineNotFoundID
	SettingsLoadFailedID
)

type (
	// ID identifies a catalog entry.
	ID int

	// Issue is a Markdown help page.
	Issue struct {
		id       ID
		title    string
		markdown string
	}
)

// ID returns the entry id.
func (i *Issue) ID() ID { return i.id }

// Title returns the page heading.
func (i *Issue) Title() string { return i.title }

// Markdown returns the raw page source.
func (i *Issue) Markdown() string { return "# " + i.title + "\n" + i.markdown }

// Render formats the page for the terminal using the named glamour style
// ("dark", "light", "notty", "auto" or a JSON style path).
func (i *Issue) Render(style string) (string, error) {
	return render(i.Markdown(), style)
}

var render = glamour.Render

var catalog = map[ID]*Issue{
	ConfigNotFoundID: {id: ConfigNotFoundID, title: "No envrun configuration found", markdown: `
envrun looks for ` + "`envrun.toml`" + ` and then ` + "`envrun.cue`" + ` in the project root.

## Things you can try
- Create a minimal ` + "`envrun.toml`" + `:
~~~toml
[envrun]
env_list = ["test"]

[env.test]
commands = ["go test ./..."]
~~~
- Point at a file elsewhere with ` + "`--conf path/to/envrun.toml`" + `.`},

	ConfigParseErrorID: {id: ConfigParseErrorID, title: "The project configuration could not be parsed", markdown: `
Only the ` + "`[envrun]`" + ` table (core settings) and the ` + "`[env]`" + ` table are
accepted at the top level. Each environment lives in ` + "`[env.NAME]`" + `; plain keys of
` + "`[env]`" + ` are shared by every environment.

## Things you can try
- Check the line and column in the message above.
- Values must be strings, numbers, booleans or lists of those.`},

	UnknownEnvironmentID: {id: UnknownEnvironmentID, title: "Unknown environment", markdown: `
An environment named on the command line has no section and matches no factor
combination of ` + "`env_list`" + `.

## Things you can try
- List the known environments with ` + "`envrun list`" + `.
- Add a ` + "`[env.NAME]`" + ` table, or rely on factor conditions in ` + "`[env]`" + `.`},

	InvalidDependencyID: {id: InvalidDependencyID, title: "Invalid package environment reference", markdown: `
A run environment's ` + "`package_env`" + ` must name a different environment, and the
package environment itself must not declare a ` + "`package_env`" + `.

## Things you can try
- Inspect the edges with ` + "`envrun depends`" + `.
- Give the builder a dedicated name such as ` + "`.pkg`" + `.`},

	KindConflictID: {id: KindConflictID, title: "Two plugins registered the same environment kind", markdown: `
Every environment kind (for example ` + "`native`" + ` or ` + "`builder`" + `) may be registered
by one plugin only.

## Things you can try
- Remove one of the plugins from the core ` + "`plugins`" + ` list.`},

	NoMatchingKindID: {id: NoMatchingKindID, title: "No environment kind matches", markdown: `
The ` + "`runner`" + ` of an environment names a kind nobody registered, or a kind whose
role does not fit (a run kind used for a package environment or the reverse).

## Available kinds
- **native**: host shell
- **virtual**: embedded POSIX shell
- **container**: Docker container
- **builder**: package builder

Run ` + "`envrun list --kinds`" + ` to see what is registered.`},

	UnknownExtensionPointID: {id: UnknownExtensionPointID, title: "A plugin declares an unknown extension point", markdown: `
A plugin claimed an extension point that does not exist or that it does not
implement. This is a bug in the plugin.`},

	UnresolvedSubstitutionID: {id: UnresolvedSubstitutionID, title: "A substitution could not be resolved", markdown: `
Values may reference ` + "`{key}`" + `, ` + "`{section:key}`" + `, ` + "`{env:NAME:default}`" + ` and
` + "`{posargs:default}`" + `. A reference to a key that has no value, or a chain of
references that loops back on itself, cannot be resolved.

## Things you can try
- Escape literal braces as ` + "`\\{`" + ` and ` + "`\\}`" + `.
- Shell expansions written as ` + "`${VAR}`" + ` are passed through untouched.
- Inspect resolved values with ` + "`envrun config -e NAME -k KEY`" + `.`},

	MissingRequirementID: {id: MissingRequirementID, title: "A base requirement is missing", markdown: `
None of the executables listed in ` + "`base`" + ` was found by the environment's runner.

## Things you can try
- Install the tool, or add it to ` + "`PATH`" + `.
- Set ` + "`skip_missing_interpreters = true`" + ` to report the environment as skipped.`},

	ContainerEngineNotFoundID: {id: ContainerEngineNotFoundID, title: "No container engine available", markdown: `
The ` + "`container`" + ` runner needs a reachable Docker-compatible engine.

## Things you can try
- Start Docker or Podman and check ` + "`DOCKER_HOST`" + `.
- Switch the environment to ` + "`runner = \"native\"`" + ` or ` + "`\"virtual\"`" + `.`},

	SettingsLoadFailedID: {id: SettingsLoadFailedID, title: "User settings could not be loaded", markdown: `
User settings live in ` + "`$XDG_CONFIG_HOME/envrun/config.cue`" + ` and can be overridden
with ` + "`ENVRUN_*`" + ` environment variables.

## Things you can try
- Fix the field reported above, or move the file away to use defaults.`},
}

// Get returns the catalog entry for id, or nil.
func Get(id ID) *Issue {
	return catalog[id]
}

// All returns every catalog entry ordered by id.
func All() []*Issue {
	return slices.SortedFunc(maps.Values(catalog), func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
}
