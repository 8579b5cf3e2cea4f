package ports

// ProfileLister enumerates named profiles of a locally configured CLI.
type ProfileLister interface {
	ListProfiles() ([]string, error)
}
