package guard

import "strings"

// Route binds a path pattern to a requirement. A pattern ending in "/*" matches the prefix and
// everything below it; any other pattern matches exactly.
type Route struct {
	Pattern     string
	Requirement Requirement
}

// DefaultRoutes mirror the web app. Order matters: the first match wins.
func DefaultRoutes() []Route {
	return []Route{
		{Pattern: "/loading", Requirement: Requirement{CompletedQuiz: true}},
		{Pattern: "/result", Requirement: Requirement{CompletedQuiz: true}},
		{Pattern: "/login", Requirement: Requirement{GuestOnly: true}},
		{Pattern: "/mypage", Requirement: Requirement{Auth: true}},
		{Pattern: "/payment", Requirement: Requirement{Auth: true}},
		{Pattern: "/admin/login"},
		{Pattern: "/admin/*", Requirement: Requirement{Admin: true}},
	}
}

// RequirementFor returns the requirement of the first route matching path.
func (g *Guard) RequirementFor(path string) (Requirement, bool) {
	path = normalize(path)
	for _, r := range g.routes {
		if matches(r.Pattern, path) {
			return r.Requirement, true
		}
	}
	return Requirement{}, false
}

func matches(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	return path == pattern
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimRight(path, "/")
	if path == "" {
		return "/"
	}
	return path
}
