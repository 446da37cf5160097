// SPDX-License-Identifier: MPL-2.0

package confset

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/envrun/envrun/internal/source"
)

func newTestConfig(src *source.Memory, opts ...Option) *Config {
	opts = append([]Option{WithLookupEnv(func(string) (string, bool) { return "", false })}, opts...)
	return NewConfig(src, opts...)
}

func TestGet_DefaultNeverMissing(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(source.NewMemory())
	store := cfg.Env("py")
	store.MustDeclare(Declaration{Keys: []string{"ignore_errors"}, Type: TypeBool, Default: false})
	store.MustDeclare(Declaration{Keys: []string{"deps"}, Type: TypeStringList, Default: []string{}})

	if v, err := Get[bool](store, "ignore_errors"); err != nil || v {
		t.Errorf("ignore_errors = %v, %v; want false, nil", v, err)
	}
	if v, err := Get[[]string](store, "deps"); err != nil || len(v) != 0 {
		t.Errorf("deps = %v, %v; want empty, nil", v, err)
	}
}

func TestGet_MissingValue(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(source.NewMemory())
	store := cfg.Core()
	store.MustDeclare(Declaration{Keys: []string{"required"}, Type: TypeString})

	_, err := store.Get("required")
	var missing *MissingValueError
	if !errors.As(err, &missing) {
		t.Fatalf("Get() error = %v, want MissingValueError", err)
	}
	if missing.Key != "required" || missing.Section != source.CoreSection {
		t.Errorf("MissingValueError = %+v", missing)
	}
}

func TestGet_OverridePrecedence(t *testing.T) {
	t.Parallel()

	src := source.NewMemory().
		SetEnv("py", "description", "from source").
		SetCore("description", "core")

	tests := []struct {
		name     string
		override Override
		want     string
	}{
		{name: "qualified", override: Override{Section: "py", Key: "description", Value: "from override"}, want: "from override"},
		{name: "unqualified", override: Override{Key: "description", Value: "everywhere"}, want: "everywhere"},
		{name: "alias spelling", override: Override{Section: "py", Key: "DESCRIPTION", Value: "upper"}, want: "upper"},
		{name: "other section", override: Override{Section: "lint", Key: "description", Value: "nope"}, want: "from source"},
		{name: "append", override: Override{Section: "py", Key: "description", Value: "more", Append: true}, want: "from source\nmore"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := newTestConfig(src, WithOverrides([]Override{tt.override}))
			store := cfg.Env("py")
			store.MustDeclare(Declaration{Keys: []string{"description"}, Type: TypeString, Default: ""})
			got, err := Get[string](store, "description")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("description = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGet_CoreFallback(t *testing.T) {
	t.Parallel()

	src := source.NewMemory().SetCore("package_env", ".pkg")

	t.Run("allowed", func(t *testing.T) {
		t.Parallel()
		store := newTestConfig(src).Env("py")
		store.MustDeclare(Declaration{Keys: []string{"package_env"}, Type: TypeString, Default: "", AllowCoreFallback: true})
		if got, err := Get[string](store, "package_env"); err != nil || got != ".pkg" {
			t.Errorf("package_env = %q, %v; want .pkg", got, err)
		}
	})

	t.Run("disallowed uses default", func(t *testing.T) {
		t.Parallel()
		store := newTestConfig(src).Env("py")
		store.MustDeclare(Declaration{Keys: []string{"package_env"}, Type: TypeString, Default: "none"})
		if got, err := Get[string](store, "package_env"); err != nil || got != "none" {
			t.Errorf("package_env = %q, %v; want default", got, err)
		}
	})

	t.Run("disallowed without default fails", func(t *testing.T) {
		t.Parallel()
		store := newTestConfig(src).Env("py")
		store.MustDeclare(Declaration{Keys: []string{"package_env"}, Type: TypeString})
		if _, err := store.Get("package_env"); !errors.Is(err, ErrMissingValue) {
			t.Errorf("Get() error = %v, want ErrMissingValue", err)
		}
	})

	t.Run("env defaults section wins over core", func(t *testing.T) {
		t.Parallel()
		withDefaults := source.NewMemory().
			SetCore("package_env", ".pkg").
			Set(source.EnvDefaultsSection, "package_env", "shared")
		store := newTestConfig(withDefaults).Env("py")
		store.MustDeclare(Declaration{Keys: []string{"package_env"}, Type: TypeString, Default: "", AllowCoreFallback: true})
		if got, _ := Get[string](store, "package_env"); got != "shared" {
			t.Errorf("package_env = %q, want shared", got)
		}
	})
}

func TestGet_Memoized(t *testing.T) {
	t.Parallel()

	src := source.NewMemory().SetEnv("py", "description", "first")
	store := newTestConfig(src).Env("py")
	store.MustDeclare(Declaration{Keys: []string{"description"}, Type: TypeString, Default: ""})

	first, err := Get[string](store, "description")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	src.SetEnv("py", "description", "second")
	second, err := Get[string](store, "description")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if first != second || second != "first" {
		t.Errorf("values changed after source mutation: %q then %q", first, second)
	}
}

func TestGet_FailuresNotCached(t *testing.T) {
	t.Parallel()

	src := source.NewMemory().SetEnv("py", "count", "many")
	store := newTestConfig(src).Env("py")
	store.MustDeclare(Declaration{Keys: []string{"count"}, Type: TypeInt})

	if _, err := store.Get("count"); !errors.Is(err, ErrTypeCoercion) {
		t.Fatalf("Get() error = %v, want ErrTypeCoercion", err)
	}
	src.SetEnv("py", "count", "3")
	if got, err := Get[int](store, "count"); err != nil || got != 3 {
		t.Errorf("count = %d, %v; want 3 after fixing the source", got, err)
	}
}

func TestGet_TypeCoercionErrorCarriesRaw(t *testing.T) {
	t.Parallel()

	src := source.NewMemory().SetCore("parallel", "lots")
	store := newTestConfig(src).Core()
	store.MustDeclare(Declaration{Keys: []string{"parallel"}, Type: TypeInt, Default: 0})

	_, err := store.Get("parallel")
	var coerceErr *TypeCoercionError
	if !errors.As(err, &coerceErr) {
		t.Fatalf("Get() error = %v, want TypeCoercionError", err)
	}
	if coerceErr.Raw != "lots" || coerceErr.Target != TypeInt {
		t.Errorf("TypeCoercionError = %+v", coerceErr)
	}
}

func TestGet_Types(t *testing.T) {
	t.Parallel()

	src := source.NewMemory().
		SetEnv("py", "flag", "true").
		SetEnv("py", "timeout", "1.5").
		SetEnv("py", "grace", "250ms").
		SetEnv("py", "labels", "a, b\nc").
		SetEnv("py", "commands", "echo one\n- false\necho \\\n  joined").
		SetEnv("py", "set_env", "A=1\nB = two").
		SetEnv("py", "dir", "sub/dir")
	store := newTestConfig(src, WithRoot("/project")).Env("py")
	store.MustDeclare(Declaration{Keys: []string{"flag"}, Type: TypeBool})
	store.MustDeclare(Declaration{Keys: []string{"timeout"}, Type: TypeDuration})
	store.MustDeclare(Declaration{Keys: []string{"grace"}, Type: TypeDuration})
	store.MustDeclare(Declaration{Keys: []string{"labels"}, Type: TypeNameList})
	store.MustDeclare(Declaration{Keys: []string{"commands"}, Type: TypeCommandList})
	store.MustDeclare(Declaration{Keys: []string{"set_env"}, Type: TypeEnvMap})
	store.MustDeclare(Declaration{Keys: []string{"dir"}, Type: TypePath})

	if v, _ := Get[bool](store, "flag"); !v {
		t.Error("flag = false, want true")
	}
	if v, _ := Get[time.Duration](store, "timeout"); v != 1500*time.Millisecond {
		t.Errorf("timeout = %v", v)
	}
	if v, _ := Get[time.Duration](store, "grace"); v != 250*time.Millisecond {
		t.Errorf("grace = %v", v)
	}
	if v, _ := Get[[]string](store, "labels"); !slices.Equal(v, []string{"a", "b", "c"}) {
		t.Errorf("labels = %v", v)
	}
	cmds, err := Get[[]Command](store, "commands")
	if err != nil {
		t.Fatalf("commands error = %v", err)
	}
	want := []Command{{Line: "echo one"}, {Line: "false", IgnoreExit: true}, {Line: "echo    joined"}}
	if len(cmds) != len(want) {
		t.Fatalf("commands = %+v", cmds)
	}
	for i := range want {
		if cmds[i] != want[i] {
			t.Errorf("commands[%d] = %+v, want %+v", i, cmds[i], want[i])
		}
	}
	env, _ := Get[EnvVars](store, "set_env")
	if m := env.Map(); m["A"] != "1" || m["B"] != "two" {
		t.Errorf("set_env = %+v", env)
	}
	if v, _ := Get[string](store, "dir"); v != "/project/sub/dir" {
		t.Errorf("dir = %q", v)
	}

	ints := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"4", 4, false},
		{"010", 10, false},
		{"08", 8, false},
		{"-007", -7, false},
		{"000", 0, false},
		{" 12 ", 12, false},
		{"0x10", 0, true},
	}
	for _, tt := range ints {
		s := newTestConfig(source.NewMemory().SetEnv("py", "parallel", tt.raw)).Env("py")
		s.MustDeclare(Declaration{Keys: []string{"parallel"}, Type: TypeInt})
		got, err := Get[int](s, "parallel")
		if tt.wantErr {
			if !errors.Is(err, ErrTypeCoercion) {
				t.Errorf("parallel=%q: error = %v, want a coercion error", tt.raw, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("parallel=%q: got %d, %v; want %d", tt.raw, got, err, tt.want)
		}
	}
}

func TestDeclare(t *testing.T) {
	t.Parallel()

	t.Run("incompatible type", func(t *testing.T) {
		t.Parallel()
		store := newTestConfig(source.NewMemory()).Core()
		store.MustDeclare(Declaration{Keys: []string{"parallel"}, Type: TypeInt, Default: 0})
		err := store.Declare(Declaration{Keys: []string{"parallel"}, Type: TypeBool, Default: false})
		if !errors.Is(err, ErrDuplicateDeclaration) {
			t.Fatalf("Declare() error = %v, want ErrDuplicateDeclaration", err)
		}
	})

	t.Run("same type merges aliases", func(t *testing.T) {
		t.Parallel()
		src := source.NewMemory().SetCore("envlist", "a,b")
		store := newTestConfig(src).Core()
		store.MustDeclare(Declaration{Keys: []string{"env_list"}, Type: TypeNameList, Default: []string{}})
		store.MustDeclare(Declaration{Keys: []string{"env_list", "envlist"}, Type: TypeNameList, Default: []string{}})
		if got := store.PrimaryKey("envlist"); got != "env_list" {
			t.Errorf("PrimaryKey(envlist) = %q", got)
		}
		if v, _ := Get[[]string](store, "env_list"); !slices.Equal(v, []string{"a", "b"}) {
			t.Errorf("env_list = %v", v)
		}
	})

	t.Run("redeclarable replaces", func(t *testing.T) {
		t.Parallel()
		store := newTestConfig(source.NewMemory()).Core()
		store.MustDeclare(Declaration{Keys: []string{"x"}, Type: TypeString, Default: "", Redeclarable: true})
		if err := store.Declare(Declaration{Keys: []string{"x"}, Type: TypeInt, Default: 7}); err != nil {
			t.Fatalf("Declare() error = %v", err)
		}
		if v, _ := Get[int](store, "x"); v != 7 {
			t.Errorf("x = %d", v)
		}
	})
}

func TestSubstitution(t *testing.T) {
	t.Parallel()

	src := source.NewMemory().
		SetCore("work_dir", "/tmp/work").
		SetEnv("py", "env_dir", "{envrun:work_dir}/{name}").
		SetEnv("py", "name", "py").
		SetEnv("py", "home", "{env:HOME_FOR_TEST}").
		SetEnv("py", "fallback", "{env:NOT_SET:dflt-{name}}").
		SetEnv("py", "literal", `\{name\} and ${SHELL_VAR} and {}`).
		SetEnv("py", "cmd", "run {posargs:tests}").
		SetEnv("lint", "tool", "ruff").
		SetEnv("py", "other", "{lint:tool}")

	lookup := func(name string) (string, bool) {
		if name == "HOME_FOR_TEST" {
			return "/home/test", true
		}
		return "", false
	}
	cfg := NewConfig(src, WithLookupEnv(lookup))
	store := cfg.Env("py")

	tests := []struct {
		key  string
		want string
	}{
		{key: "env_dir", want: "/tmp/work/py"},
		{key: "home", want: "/home/test"},
		{key: "fallback", want: "dflt-py"},
		{key: "literal", want: "{name} and ${SHELL_VAR} and {}"},
		{key: "cmd", want: "run tests"},
		{key: "other", want: "ruff"},
	}
	for _, tt := range tests {
		got, err := store.Get(tt.key)
		if err != nil {
			t.Errorf("Get(%q) error = %v", tt.key, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestSubstitution_PosArgs(t *testing.T) {
	t.Parallel()

	src := source.NewMemory().SetEnv("py", "cmd", "pytest {posargs:-x}")
	store := newTestConfig(src, WithPosArgs([]string{"-k", "fast"})).Env("py")
	if got, _ := store.Get("cmd"); got != "pytest -k fast" {
		t.Errorf("cmd = %q", got)
	}
}

func TestSubstitution_Cycle(t *testing.T) {
	t.Parallel()

	src := source.NewMemory().
		SetEnv("py", "a", "{b}").
		SetEnv("py", "b", "{a}")
	store := newTestConfig(src).Env("py")
	store.MustDeclare(Declaration{Keys: []string{"a"}, Type: TypeString})
	store.MustDeclare(Declaration{Keys: []string{"b"}, Type: TypeString})

	_, err := store.Get("a")
	if !errors.Is(err, ErrUnresolvedSubstitution) {
		t.Fatalf("Get(a) error = %v, want ErrUnresolvedSubstitution", err)
	}
	var unresolved *UnresolvedSubstitutionError
	if !errors.As(err, &unresolved) || len(unresolved.Chain) == 0 {
		t.Errorf("expected a cycle chain, got %v", err)
	}
}

func TestSubstitution_CrossSectionCycle(t *testing.T) {
	t.Parallel()

	src := source.NewMemory().
		SetEnv("py", "a", "{lint:b}").
		SetEnv("lint", "b", "{py:a}")
	store := newTestConfig(src).Env("py")

	if _, err := store.Get("a"); !errors.Is(err, ErrUnresolvedSubstitution) {
		t.Fatalf("Get(a) error = %v, want ErrUnresolvedSubstitution", err)
	}
}

func TestSubstitution_UnknownReference(t *testing.T) {
	t.Parallel()

	src := source.NewMemory().SetEnv("py", "a", "x {nope} y")
	store := newTestConfig(src).Env("py")
	store.MustDeclare(Declaration{Keys: []string{"a"}, Type: TypeString})

	_, err := store.Get("a")
	var unresolved *UnresolvedSubstitutionError
	if !errors.As(err, &unresolved) {
		t.Fatalf("Get(a) error = %v, want UnresolvedSubstitutionError", err)
	}
	if unresolved.Key != "a" || unresolved.Reference != "nope" {
		t.Errorf("UnresolvedSubstitutionError = %+v", unresolved)
	}
}

func TestDefaultFunc_ReadsOtherKeys(t *testing.T) {
	t.Parallel()

	src := source.NewMemory().SetCore("work_dir", "/w")
	cfg := newTestConfig(src)
	cfg.Core().MustDeclare(Declaration{Keys: []string{"work_dir"}, Type: TypePath})
	store := cfg.Env("py")
	store.MustDeclare(Declaration{
		Keys: []string{"env_dir"},
		Type: TypePath,
		DefaultFunc: func(v View) (any, error) {
			work, err := ViewGet[string](v.Core(), "work_dir")
			if err != nil {
				return nil, err
			}
			return work + "/" + v.Name(), nil
		},
	})
	if got, err := Get[string](store, "env_dir"); err != nil || got != "/w/py" {
		t.Errorf("env_dir = %q, %v", got, err)
	}
}

func TestFactorConditions(t *testing.T) {
	t.Parallel()

	src := source.NewMemory().Set(source.EnvDefaultsSection, "deps", "base\npy312: new-only\n!py312: old-only\npy312-lint: both\nlint,docs: either")
	cfg := newTestConfig(src)

	tests := []struct {
		env  string
		want []string
	}{
		{env: "py312", want: []string{"base", "new-only"}},
		{env: "py311", want: []string{"base", "old-only"}},
		{env: "py312-lint", want: []string{"base", "new-only", "both", "either"}},
		{env: "docs", want: []string{"base", "old-only", "either"}},
	}
	for _, tt := range tests {
		store := cfg.Env(tt.env)
		store.MustDeclare(Declaration{Keys: []string{"deps"}, Type: TypeStringList, Default: []string{}})
		got, err := Get[[]string](store, "deps")
		if err != nil {
			t.Fatalf("%s: Get() error = %v", tt.env, err)
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("%s: deps = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestKeysAndUnused(t *testing.T) {
	t.Parallel()

	src := source.NewMemory().
		SetEnv("py", "commands", "true").
		SetEnv("py", "typo_key", "x").
		SetEnv("py", "extra", "y")
	store := newTestConfig(src).Env("py")
	store.MustDeclare(Declaration{Keys: []string{"description"}, Type: TypeString, Default: ""})
	store.MustDeclare(Declaration{Keys: []string{"commands"}, Type: TypeCommandList, Default: []Command{}})

	if got := store.Keys(); !slices.Equal(got, []string{"description", "commands", "typo_key", "extra"}) {
		t.Errorf("Keys() = %v", got)
	}
	if !store.Contains("typo_key") || store.Contains("missing") {
		t.Error("Contains() mismatch")
	}
	if _, err := store.Get("commands"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := store.Unused(); !slices.Equal(got, []string{"typo_key", "extra"}) {
		t.Errorf("Unused() = %v", got)
	}
	if _, err := store.Get("extra"); err != nil {
		t.Fatalf("Get(extra) error = %v", err)
	}
	if got := store.Unused(); !slices.Equal(got, []string{"typo_key"}) {
		t.Errorf("Unused() after reading extra = %v", got)
	}
}

func TestDefined(t *testing.T) {
	t.Parallel()

	src := source.NewMemory().SetEnv("py", "runner", "virtual").SetCore("runner", "native")
	cfg := newTestConfig(src, WithOverrides([]Override{{Section: "lint", Key: "runner", Value: "container"}}))
	if !cfg.Env("py").Defined("runner") {
		t.Error("py: runner should be defined")
	}
	if !cfg.Env("lint").Defined("runner") {
		t.Error("lint: override should count as defined")
	}
	if cfg.Env("docs").Defined("runner") {
		t.Error("docs: core value must not count as defined")
	}
}
