package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"
)

// testModule records lifecycle calls. Behavior is injectable per test.
type testModule struct {
	id string

	mu       sync.Mutex
	calls    []string
	configed *yaml.Node

	configureErr error
	provisionErr error
	validateErr  error
	startErr     error
}

func (m *testModule) ModuleInfo() ModuleInfo {
	return ModuleInfo{
		ID:  ModuleID(m.id),
		New: func() Module { return m },
	}
}

func (m *testModule) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *testModule) Configure(node *yaml.Node) error {
	m.record("configure")
	m.configed = node
	return m.configureErr
}

func (m *testModule) Provision(_ *AppContext) error {
	m.record("provision")
	return m.provisionErr
}

func (m *testModule) Validate() error {
	m.record("validate")
	return m.validateErr
}

func (m *testModule) Start() error {
	m.record("start")
	return m.startErr
}

func (m *testModule) Stop(_ context.Context) error {
	m.record("stop")
	return nil
}

func register(t *testing.T, m *testModule) {
	t.Helper()
	RegisterModule(m)
}

func newAppContext() *AppContext {
	return NewAppContext(slog.Default(), "")
}

func TestRegisterModule_Duplicate(t *testing.T) {
	register(t, &testModule{id: "test.dup"})

	defer func() {
		if recover() == nil {
			t.Error("duplicate registration should panic")
		}
	}()
	RegisterModule(&testModule{id: "test.dup"})
}

func TestGetModules_Sorted(t *testing.T) {
	register(t, &testModule{id: "test.zz"})
	register(t, &testModule{id: "test.aa"})

	mods := GetModules()
	for i := 1; i < len(mods); i++ {
		if mods[i-1].ID > mods[i].ID {
			t.Fatalf("modules not sorted: %q before %q", mods[i-1].ID, mods[i].ID)
		}
	}
}

func TestServiceRegistry(t *testing.T) {
	ctx := newAppContext()

	if _, ok := ctx.Service("absent"); ok {
		t.Error("unregistered service should not resolve")
	}

	ctx.RegisterService("thing", 42)
	v, ok := ctx.Service("thing")
	if !ok || v.(int) != 42 {
		t.Errorf("service = %v, %v", v, ok)
	}

	// Same name again overwrites the earlier value.
	ctx.RegisterService("thing", 43)
	if v, _ := ctx.Service("thing"); v.(int) != 43 {
		t.Errorf("re-registered service = %v, want 43", v)
	}

	// The registry is shared through context copies.
	scoped := ctx.ForModule("test.scope")
	if _, ok := scoped.Service("thing"); !ok {
		t.Error("scoped context lost the service registry")
	}
	scoped.RegisterService("from-scope", "x")
	if _, ok := ctx.Service("from-scope"); !ok {
		t.Error("registration through scoped context not visible to parent")
	}
}

func TestLoadModule_Lifecycle(t *testing.T) {
	mod := &testModule{id: "test.lifecycle"}
	register(t, mod)

	var node yaml.Node
	if err := yaml.Unmarshal([]byte("setting: on"), &node); err != nil {
		t.Fatal(err)
	}

	ctx := newAppContext().WithModuleConfigs(map[string]yaml.Node{
		"test.lifecycle": *node.Content[0],
	})

	if _, err := ctx.LoadModule("test.lifecycle"); err != nil {
		t.Fatalf("LoadModule() error: %v", err)
	}

	want := []string{"configure", "provision", "validate"}
	if len(mod.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", mod.calls, want)
	}
	for i := range want {
		if mod.calls[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, mod.calls[i], want[i])
		}
	}
	if mod.configed == nil {
		t.Error("config node not delivered")
	}
}

func TestLoadModule_Unknown(t *testing.T) {
	if _, err := newAppContext().LoadModule("test.never-registered"); err == nil {
		t.Error("unknown module should fail to load")
	}
}

func TestLoadModule_ValidateFailure(t *testing.T) {
	mod := &testModule{id: "test.badvalidate", validateErr: errors.New("bad config")}
	register(t, mod)

	if _, err := newAppContext().LoadModule("test.badvalidate"); err == nil {
		t.Error("validate failure should fail the load")
	}
}

func TestApp_StartStopOrder(t *testing.T) {
	first := &testModule{id: "test.order-a"}
	second := &testModule{id: "test.order-b"}
	register(t, first)
	register(t, second)

	app := NewApp(newAppContext())
	if err := app.LoadModules([]string{"test.order-a", "test.order-b"}); err != nil {
		t.Fatalf("LoadModules() error: %v", err)
	}
	if err := app.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	app.Stop()

	// Stop runs in reverse: second stops before first.
	if got := second.calls[len(second.calls)-1]; got != "stop" {
		t.Errorf("second module final call = %q, want stop", got)
	}
	if got := first.calls[len(first.calls)-1]; got != "stop" {
		t.Errorf("first module final call = %q, want stop", got)
	}
}

func TestApp_StartFailureRollsBack(t *testing.T) {
	healthy := &testModule{id: "test.rollback-ok"}
	broken := &testModule{id: "test.rollback-bad", startErr: errors.New("boom")}
	register(t, healthy)
	register(t, broken)

	app := NewApp(newAppContext())
	if err := app.LoadModules([]string{"test.rollback-ok", "test.rollback-bad"}); err != nil {
		t.Fatalf("LoadModules() error: %v", err)
	}
	if err := app.Start(); err == nil {
		t.Fatal("Start() should propagate the module failure")
	}

	// The already-started module must have been stopped.
	if got := healthy.calls[len(healthy.calls)-1]; got != "stop" {
		t.Errorf("healthy module final call = %q, want stop", got)
	}
}
