package pattern

import "testing"

func TestTemplateMatches(t *testing.T) {
	cases := []struct {
		template, path string
		want           bool
	}{
		{"/api/{id}", "/api/42", true},
		{"/api/{id}", "/api/42/x", false},
		{"/api/users/{id}", "/api/USERS/42", true},
		{"/api/users", "/api/users", true},
		{"/api/users", "/api/users/", false},
		{"/api/{id}", "/api/", false},
	}
	for _, c := range cases {
		if got := TemplateMatches(c.template, c.path); got != c.want {
			t.Errorf("TemplateMatches(%q, %q) = %v, want %v", c.template, c.path, got, c.want)
		}
	}
}

func TestGlobMatches(t *testing.T) {
	cases := []struct {
		glob, path string
		want       bool
	}{
		{"/api/users/*", "/api/users/42", true},
		{"/api/users/*", "/api/users/42/posts", true},
		{"/api/{id}", "/api/42", true},
		{"/api/{id}", "/api/42/x", false},
		{"/api/users", "/api/other", false},
	}
	for _, c := range cases {
		if got := GlobMatches(c.glob, c.path); got != c.want {
			t.Errorf("GlobMatches(%q, %q) = %v, want %v", c.glob, c.path, got, c.want)
		}
	}
}
