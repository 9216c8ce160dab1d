package types

import "testing"

func TestServiceIDIsContentAddressed(t *testing.T) {
	svc := Service{Name: "svc-a", Status: ServiceActive}
	id, err := svc.ID()
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	id2, err := svc.ID()
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	if id != id2 {
		t.Fatalf("expected identical IDs for identical service bytes")
	}

	other := svc
	other.Name = "svc-b"
	otherID, err := other.ID()
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	if otherID == id {
		t.Fatalf("expected different IDs for different service bytes")
	}
}

func TestServiceWorkflowLookup(t *testing.T) {
	svc := Service{
		Workflows: []WorkflowEntry{
			{ID: "wf1", Workflow: Workflow{}},
			{ID: "wf2", Workflow: Workflow{}},
		},
	}
	if _, ok := svc.Workflow("wf1"); !ok {
		t.Fatalf("expected to find wf1")
	}
	if _, ok := svc.Workflow("missing"); ok {
		t.Fatalf("expected missing workflow id to not be found")
	}
}

func TestServiceIDStringRoundTrip(t *testing.T) {
	svc := Service{Name: "svc-c", Status: ServiceActive}
	id, err := svc.ID()
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	parsed, err := ParseServiceID(id.String())
	if err != nil {
		t.Fatalf("ParseServiceID: %v", err)
	}
	if parsed != id {
		t.Fatalf("expected parsed service id to equal original")
	}
}
