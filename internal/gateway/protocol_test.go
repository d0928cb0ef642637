package gateway

import (
	"encoding/json"
	"testing"
)

func TestNewRegistration(t *testing.T) {
	commands := []string{"canvas.present", "canvas.touchArea.bounds"}
	reg := NewRegistration(commands)
	commands[0] = "mutated"
	if reg.Commands[0] != "canvas.present" {
		t.Fatalf("expected registration to copy commands")
	}
	if reg.Role != "node" {
		t.Fatalf("expected role node")
	}
	if len(reg.Caps) < 2 || reg.Caps[0] != "canvas" || reg.Caps[1] != "touch" {
		t.Fatalf("expected canvas and touch caps, got %v", reg.Caps)
	}
	found := false
	for _, cmd := range reg.Commands {
		if cmd == "canvas.touchArea.bounds" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected touch area bounds command")
	}
}

func TestInvokeResultOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(InvokeResultParams{RequestID: "r1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"requestId":"r1"}` {
		t.Fatalf("unexpected json %s", data)
	}
}

func TestEnvelopeKeepsRawID(t *testing.T) {
	var env Envelope
	if err := json.Unmarshal([]byte(`{"id":42,"method":"node.invoke.request","params":{"command":"canvas.present"}}`), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.ID == nil || string(*env.ID) != "42" {
		t.Fatalf("expected numeric id preserved, got %v", env.ID)
	}
	var params InvokeRequestParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.Command != "canvas.present" {
		t.Fatalf("unexpected command %q", params.Command)
	}
}

func TestRPCErrorMessage(t *testing.T) {
	err := &RPCError{Code: 3, Message: "denied"}
	if err.Error() != "gateway: rpc error denied" {
		t.Fatalf("unexpected error text %q", err.Error())
	}
}
