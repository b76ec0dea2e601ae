package jobs

import "testing"

type stubHandler struct {
	jobType string
}

func (h stubHandler) Type() string       { return h.jobType }
func (h stubHandler) Run(*Context) error { return nil }

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register(nil); err == nil {
		t.Fatalf("nil handler must be rejected")
	}
	if err := reg.Register(stubHandler{}); err == nil {
		t.Fatalf("empty job type must be rejected")
	}

	if err := reg.Register(stubHandler{jobType: "validation_report"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(stubHandler{jobType: "validation_report"}); err == nil {
		t.Fatalf("duplicate registration must be rejected")
	}

	h, ok := reg.Get("validation_report")
	if !ok {
		t.Fatalf("registered handler not found")
	}
	if h.Type() != "validation_report" {
		t.Fatalf("Get returned handler for %s", h.Type())
	}

	if _, ok := reg.Get("document"); ok {
		t.Fatalf("unknown job type must not resolve")
	}
}
