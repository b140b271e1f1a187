package dto

import (
	"encoding/json"
	"testing"
)

func TestVisitActionRequest_FlexIDs(t *testing.T) {
	body := `{"visitorId": 42, "scheduleId": " 7f1c ", "securityId": null, "action": "logEntry", "entryChecked": true}`

	var req VisitActionRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.VisitorID != "42" {
		t.Errorf("VisitorID = %q, want 42", req.VisitorID)
	}
	if req.ScheduleID != "7f1c" {
		t.Errorf("ScheduleID = %q, want 7f1c", req.ScheduleID)
	}
	if !req.SecurityID.Empty() {
		t.Errorf("SecurityID should be empty, got %q", req.SecurityID)
	}
	if !req.EntryChecked || req.ExitChecked {
		t.Errorf("checked flags = (%v,%v)", req.EntryChecked, req.ExitChecked)
	}
}

func TestFlexID_RejectsObjects(t *testing.T) {
	var id FlexID
	if err := json.Unmarshal([]byte(`{"id":1}`), &id); err == nil {
		t.Fatal("expected error for object id")
	}
}
