package mongodb

const (
	// UsersCollection holds user documents with their services.pitchly
	// sub-records.
	UsersCollection = "users"
	// ServiceConfigCollection holds provider configuration rows, keyed by
	// service name.
	ServiceConfigCollection = "service_configurations"
)
