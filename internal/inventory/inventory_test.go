package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nerrad567/fanpresence/internal/infrastructure/config"
)

// fakeCaller records calls and answers them with result or err.
type fakeCaller struct {
	calls  []fakeCall
	result string
	err    error
}

type fakeCall struct {
	service string
	method  string
	params  json.RawMessage
}

func (f *fakeCaller) Call(_ context.Context, service, method string, params, result any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	f.calls = append(f.calls, fakeCall{service: service, method: method, params: raw})
	if f.err != nil {
		return f.err
	}
	if result != nil && f.result != "" {
		return json.Unmarshal([]byte(f.result), result)
	}
	return nil
}

func testInventoryConfig() config.InventoryConfig {
	return config.InventoryConfig{
		MapperService:    "xyz.openbmc_project.ObjectMapper",
		MapperPath:       "/xyz/openbmc_project/object_mapper",
		MapperInterface:  "xyz.openbmc_project.ObjectMapper",
		ManagerPath:      "/xyz/openbmc_project/inventory",
		ManagerInterface: "xyz.openbmc_project.Inventory.Manager",
		ItemInterface:    "xyz.openbmc_project.Inventory.Item",
	}
}

func TestItemObject(t *testing.T) {
	obj := ItemObject("/system/chassis/motherboard/fan0", "xyz.openbmc_project.Inventory.Item", true, "Fan 0")

	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"/system/chassis/motherboard/fan0":{"xyz.openbmc_project.Inventory.Item":{"Present":true,"PrettyName":"Fan 0"}}}`
	if string(data) != want {
		t.Errorf("ItemObject() = %s, want %s", data, want)
	}
}

func TestMapper_Owner(t *testing.T) {
	tests := []struct {
		name    string
		result  string
		err     error
		want    string
		wantErr []error
	}{
		{
			name:   "single owner",
			result: `{"xyz.openbmc_project.Inventory.Manager":["xyz.openbmc_project.Inventory.Manager"]}`,
			want:   "xyz.openbmc_project.Inventory.Manager",
		},
		{
			name:   "several owners picks first sorted",
			result: `{"svc.b":["i"],"svc.a":["i"],"svc.c":["i"]}`,
			want:   "svc.a",
		},
		{
			name:    "empty answer",
			result:  `{}`,
			wantErr: []error{ErrResolutionFailed, ErrNoOwner},
		},
		{
			name:    "call failure",
			err:     errors.New("mqtt: operation timed out"),
			wantErr: []error{ErrResolutionFailed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &fakeCaller{result: tt.result, err: tt.err}
			mapper := NewMapper(caller, testInventoryConfig())

			got, err := mapper.Owner(context.Background(), "/xyz/openbmc_project/inventory", "xyz.openbmc_project.Inventory.Manager")
			for _, want := range tt.wantErr {
				if !errors.Is(err, want) {
					t.Errorf("Owner() error = %v, want %v", err, want)
				}
			}
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("Owner() error = %v", err)
				}
				if got != tt.want {
					t.Errorf("Owner() = %q, want %q", got, tt.want)
				}
			}
		})
	}
}

func TestMapper_GetObjectRequest(t *testing.T) {
	caller := &fakeCaller{result: `{"svc":["iface"]}`}
	mapper := NewMapper(caller, testInventoryConfig())

	if _, err := mapper.GetObject(context.Background(), "/inv", []string{"iface"}); err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}
	if len(caller.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(caller.calls))
	}
	call := caller.calls[0]
	if call.service != "xyz.openbmc_project.ObjectMapper" || call.method != "GetObject" {
		t.Errorf("call = %s.%s", call.service, call.method)
	}

	var params getObjectParams
	if err := json.Unmarshal(call.params, &params); err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.ObjectPath != "/xyz/openbmc_project/object_mapper" || params.Path != "/inv" {
		t.Errorf("params = %+v", params)
	}
	if len(params.Interfaces) != 1 || params.Interfaces[0] != "iface" {
		t.Errorf("params.Interfaces = %v", params.Interfaces)
	}
}

func TestManager_Notify(t *testing.T) {
	caller := &fakeCaller{}
	manager := NewManager(caller, testInventoryConfig())

	objects := ItemObject("/fan0", "item", false, "Fan 0")
	if err := manager.Notify(context.Background(), "svc.Inventory", objects); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if len(caller.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(caller.calls))
	}
	call := caller.calls[0]
	if call.service != "svc.Inventory" || call.method != "Notify" {
		t.Errorf("call = %s.%s", call.service, call.method)
	}
	want := `{"object_path":"/xyz/openbmc_project/inventory","interface":"xyz.openbmc_project.Inventory.Manager","objects":{"/fan0":{"item":{"Present":false,"PrettyName":"Fan 0"}}}}`
	if string(call.params) != want {
		t.Errorf("params = %s, want %s", call.params, want)
	}

	if manager.Path() != "/xyz/openbmc_project/inventory" {
		t.Errorf("Path() = %q", manager.Path())
	}
	if manager.Interface() != "xyz.openbmc_project.Inventory.Manager" {
		t.Errorf("Interface() = %q", manager.Interface())
	}
}

func TestManager_NotifyRejected(t *testing.T) {
	remote := errors.New("mqtt: remote method error: InvalidArgs")
	caller := &fakeCaller{err: remote}
	manager := NewManager(caller, testInventoryConfig())

	err := manager.Notify(context.Background(), "svc", ObjectMap{})
	if !errors.Is(err, ErrCallRejected) {
		t.Errorf("Notify() error = %v, want ErrCallRejected", err)
	}
	if !errors.Is(err, remote) {
		t.Errorf("Notify() error = %v, want underlying cause kept", err)
	}
}
