package dependency

// Repository is a remote Maven layout repository
type Repository struct {
	Name string
	URL  string
}

// MavenCentral is always consulted first
var MavenCentral = Repository{
	Name: "mavenCentral",
	URL:  "https://repo1.maven.org/maven2",
}

// Repositories returns the lookup order: Maven Central then extra in the
// given order. Entries repeating Maven Central's URL are dropped.
func Repositories(extra ...Repository) []Repository {
	repos := []Repository{MavenCentral}
	for _, r := range extra {
		if r.URL == "" || r.URL == MavenCentral.URL {
			continue
		}

		repos = append(repos, r)
	}

	return repos
}
