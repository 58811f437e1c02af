package domain

import "testing"

func ptr(s string) *string { return &s }

func TestCommentValidateScope(t *testing.T) {
	tests := []struct {
		name    string
		comment Comment
		wantErr bool
	}{
		{"task only", Comment{Content: "hi", TaskID: ptr("t1")}, false},
		{"project only", Comment{Content: "hi", ProjectID: ptr("p1")}, false},
		{"blank project is ignored", Comment{Content: "hi", TaskID: ptr("t1"), ProjectID: ptr(" ")}, false},
		{"neither", Comment{Content: "hi"}, true},
		{"both", Comment{Content: "hi", TaskID: ptr("t1"), ProjectID: ptr("p1")}, true},
		{"empty content", Comment{Content: "   ", TaskID: ptr("t1")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.comment
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCommentScopeMatches(t *testing.T) {
	onTask := &Comment{TaskID: ptr("t1")}
	onProject := &Comment{ProjectID: ptr("p1")}

	if !(CommentScope{TaskID: "t1"}).Matches(onTask) {
		t.Error("task scope should match task comment")
	}
	if (CommentScope{TaskID: "t2"}).Matches(onTask) {
		t.Error("other task should not match")
	}
	if (CommentScope{ProjectID: "p1"}).Matches(onTask) {
		t.Error("project scope should not match task comment")
	}
	if !(CommentScope{ProjectID: "p1"}).Matches(onProject) {
		t.Error("project scope should match project comment")
	}
	if err := (CommentScope{}).Validate(); err == nil {
		t.Error("empty scope should be invalid")
	}
}
