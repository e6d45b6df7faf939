package domain

// ProfileFields lists the profile keys a user may update.
var ProfileFields = []string{"displayName", "bio", "location", "website"}

// Profile is a schemaless per-user document.
type Profile map[string]any
