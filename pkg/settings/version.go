package settings

// set by -ldflags "-X github.com/lionbot/lionbot/pkg/settings.version=..."
var version = "dev"
